package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpReturnsValidJSONSnapshot(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("r1", "g1"))

	data, err := e.Dump()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "resources")
}

func TestLogCommandIsNoOpWithoutCommandLogStore(t *testing.T) {
	e := newTestEngine(t)
	assert.NoError(t, e.LogCommand(context.Background(), "", "res_add", `["r1","g1"]`, "ok"))
}

func TestPingReportsHostStats(t *testing.T) {
	e := newTestEngine(t)
	reply := e.Ping(context.Background())
	assert.GreaterOrEqual(t, reply.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, reply.MemPercent, 0.0)
}
