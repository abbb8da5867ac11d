package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertSetLevelAndLevel(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AlertSetLevel("ERROR"))
	assert.Equal(t, "ERROR", e.AlertLevel())
}

func TestAddAndRemoveAlertRecipient(t *testing.T) {
	e := newTestEngine(t)
	e.AddAlertRecipient("ops@example.com")
	require.NoError(t, e.RemoveAlertRecipient("ops@example.com"))
	assert.Error(t, e.RemoveAlertRecipient("ops@example.com"))
}

func TestSetLogLevel(t *testing.T) {
	e := newTestEngine(t)
	assert.NoError(t, e.SetLogLevel("debug"))
	assert.Error(t, e.SetLogLevel("not-a-level"))
}
