package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadFileMissingReturnsEmptyNotError(t *testing.T) {
	f, err := ReadFile(filepath.Join(t.TempDir(), "missing.cf"))
	require.NoError(t, err)
	assert.NotNil(t, f.Resources)
	assert.NotNil(t, f.Groups)
}

func TestWriteThenReadFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cf")
	original := File{
		System: SystemEntry{Attributes: map[string]any{"ClusterName": "cluster1", "NodeName": "node1", "ResourceLimit": float64(5000)}},
		Alerts: AlertsEntry{Attributes: map[string]any{"AlertLevel": "ERROR", "AlertRecipients": []any{"ops@example.com"}}},
		Groups: map[string]GroupEntry{
			"g1": {Attributes: map[string]any{"Enabled": true}},
		},
		Resources: map[string]ResourceEntry{
			"db": {
				Attributes:   map[string]any{"Group": "g1", "StartProgram": "/bin/true"},
				Dependencies: []string{},
			},
		},
	}

	require.NoError(t, WriteFile(path, original))
	loaded, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, original.System.Attributes["ClusterName"], loaded.System.Attributes["ClusterName"])
	assert.Equal(t, original.Alerts.Attributes["AlertLevel"], loaded.Alerts.Attributes["AlertLevel"])
	assert.Equal(t, original.Resources["db"].Attributes["Group"], loaded.Resources["db"].Attributes["Group"])
}

// TestReadFileParsesScenario5Example parses the literal config example
// given as the config round-trip scenario: a system ResourceLimit, one
// group with AutoStart and SystemList, and one resource naming its
// group and start program with no dependencies.
func TestReadFileParsesScenario5Example(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cf")
	raw := `{
		"system": {"attributes": {"ResourceLimit": "10"}},
		"groups": {"G": {"attributes": {"AutoStart": "true", "SystemList": ["h1"]}}},
		"resources": {
			"r1": {
				"attributes": {"Group": "G", "StartProgram": "/bin/true"},
				"dependencies": []
			}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "10", f.System.Attributes["ResourceLimit"])
	g, ok := f.Groups["G"]
	require.True(t, ok)
	assert.Equal(t, "true", g.Attributes["AutoStart"])
	assert.Equal(t, []any{"h1"}, g.Attributes["SystemList"])

	r, ok := f.Resources["r1"]
	require.True(t, ok)
	assert.Equal(t, "G", r.Attributes["Group"])
	assert.Equal(t, "/bin/true", r.Attributes["StartProgram"])
	assert.Empty(t, r.Dependencies)
}

func TestPersisterFlushesOnlyWhenDirty(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Conf: dir}
	attrs.ClearDirty()

	calls := 0
	snapshot := func() File {
		calls++
		return emptyFile()
	}

	p := NewPersister(paths, 10*time.Millisecond, snapshot, zap.NewNop().Sugar())
	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	assert.Equal(t, 0, calls, "persister should not flush while the dirty flag is clear")

	attrs.MarkDirty()
	p2 := NewPersister(paths, 10*time.Millisecond, snapshot, zap.NewNop().Sugar())
	p2.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	p2.Stop()

	assert.GreaterOrEqual(t, calls, 1)
	assert.False(t, attrs.IsDirty(), "flush clears the dirty flag")
}
