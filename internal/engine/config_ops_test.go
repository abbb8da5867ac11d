package engine

import (
	"context"
	"testing"

	"github.com/icsd/icsd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotOnlyIncludesModifiedAttributes(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("r1", "g1"))
	require.NoError(t, e.ResModify("r1", "StartProgram", "/bin/true"))

	snap := e.Snapshot()
	entry, ok := snap.Resources["r1"]
	require.True(t, ok)
	assert.Equal(t, "/bin/true", entry.Attributes["StartProgram"])
	_, enabledWritten := entry.Attributes["Enabled"]
	assert.False(t, enabledWritten, "unmodified attributes should not be persisted")
}

func TestLoadConfigRoundTripsLinksAndAttributes(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("parent", "g1"))
	require.NoError(t, e.ResAdd("child", "g1"))
	require.NoError(t, e.ResLink("parent", "child"))
	require.NoError(t, e.ResModify("child", "StartProgram", "/bin/echo"))

	snap := e.Snapshot()

	e2 := newTestEngine(t)
	require.NoError(t, e2.LoadConfig(snap))

	child, ok := e2.Lookup("child")
	require.True(t, ok)
	assert.Equal(t, []string{"parent"}, child.Dependencies())
	v, err := e2.ResValue("child", "StartProgram")
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo", v)
}

func TestLoadRereadsMainCfFromDisk(t *testing.T) {
	e := newTestEngine(t)

	f := config.File{
		Groups:    map[string]config.GroupEntry{"g1": {Attributes: map[string]any{}}},
		Resources: map[string]config.ResourceEntry{"r1": {Attributes: map[string]any{"Group": "g1"}}},
	}
	require.NoError(t, config.WriteFile(e.paths.ConfFile(), f))

	require.NoError(t, e.Load())

	_, ok := e.Lookup("r1")
	assert.True(t, ok, "Load should have created r1 from the on-disk file")
}

func TestClusLoadAppliesLocallyAndFansOutWhenNotRemote(t *testing.T) {
	e := newTestEngine(t)

	f := config.File{
		Groups:    map[string]config.GroupEntry{"g1": {Attributes: map[string]any{}}},
		Resources: map[string]config.ResourceEntry{"r1": {Attributes: map[string]any{"Group": "g1"}}},
	}
	require.NoError(t, config.WriteFile(e.paths.ConfFile(), f))

	peer := &fakePeer{name: "n2"}
	require.NoError(t, e.AddNode("n2", peer))

	require.NoError(t, e.ClusLoad(context.Background(), false))

	_, ok := e.Lookup("r1")
	assert.True(t, ok)

	peer.mu.Lock()
	defer peer.mu.Unlock()
	assert.Equal(t, 1, peer.loadCalls, "ClusLoad should fan out to the peer")
}
