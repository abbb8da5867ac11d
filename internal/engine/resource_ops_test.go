package engine

import (
	"testing"

	"github.com/icsd/icsd/internal/resource"
	"github.com/icsd/icsd/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResAddRejectsDuplicateAndMissingGroup(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))

	require.NoError(t, e.ResAdd("r1", "g1"))
	assert.True(t, xerrors.Is(e.ResAdd("r1", "g1"), xerrors.ErrAlreadyExists))
	assert.True(t, xerrors.Is(e.ResAdd("r2", "missing"), xerrors.ErrNotFound))
}

func TestResLinkRejectsCrossGroupAndCycle(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.GrpAdd("g2"))
	require.NoError(t, e.ResAdd("parent", "g1"))
	require.NoError(t, e.ResAdd("child", "g2"))

	assert.True(t, xerrors.Is(e.ResLink("parent", "child"), xerrors.ErrCrossGroupLink))

	require.NoError(t, e.ResAdd("sibling", "g1"))
	require.NoError(t, e.ResLink("parent", "sibling"))
	assert.True(t, xerrors.Is(e.ResLink("sibling", "parent"), xerrors.ErrCycle))
}

func TestResDeleteRemovesDependencyEdges(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("parent", "g1"))
	require.NoError(t, e.ResAdd("child", "g1"))
	require.NoError(t, e.ResLink("parent", "child"))

	require.NoError(t, e.ResDelete("parent"))

	child, ok := e.Lookup("child")
	require.True(t, ok)
	assert.Empty(t, child.Dependencies())
}

func TestResOnlineRejectsMonitorOnly(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("r1", "g1"))
	require.NoError(t, e.ResModify("r1", "MonitorOnly", true))

	err := e.ResOnline("r1")
	require.Error(t, err)

	r, ok := e.Lookup("r1")
	require.True(t, ok)
	assert.Equal(t, resource.Offline, r.State)
}

func TestResStateAndResDep(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("parent", "g1"))
	require.NoError(t, e.ResAdd("child", "g1"))
	require.NoError(t, e.ResLink("parent", "child"))

	states, err := e.ResState(nil)
	require.NoError(t, err)
	assert.Len(t, states, 2)

	_, err = e.ResState([]string{"missing"})
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))

	rows, err := e.ResDep([]string{"child"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "parent", rows[0].Parent)
	assert.Equal(t, "child", rows[0].Child)
}

func TestGrpAttrAppendAndRemove(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.GrpAdd("g1"))
	require.NoError(t, e.ResAdd("r1", "g1"))

	// SystemList isn't a resource attribute; exercise the group attribute
	// list instead, which both share the same Bag.ListAppend/ListRemove path.
	require.NoError(t, e.GrpAttrAppend("g1", "SystemList", "node-a"))
	vals, err := e.GrpValue("g1", "SystemList")
	require.NoError(t, err)
	assert.Equal(t, []string{"node-a"}, vals)

	require.NoError(t, e.GrpAttrRemove("g1", "SystemList", "node-a"))
	vals, err = e.GrpValue("g1", "SystemList")
	require.NoError(t, err)
	assert.Empty(t, vals)
}
