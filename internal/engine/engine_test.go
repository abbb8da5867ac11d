package engine

import (
	"testing"

	"github.com/icsd/icsd/internal/config"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct{}

func (fakeMailer) Send(recipient, subject, htmlBody string) error { return nil }

// newTestEngine builds an Engine with no background subsystems started,
// suitable for exercising resource/group/node/cluster CRUD synchronously.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	paths := config.Paths{
		Home: t.TempDir(),
		Log:  t.TempDir(),
		Conf: t.TempDir(),
		Var:  t.TempDir(),
	}
	e, err := New(Options{
		Paths:       paths,
		AlertMailer: fakeMailer{},
	})
	require.NoError(t, err)
	return e
}
