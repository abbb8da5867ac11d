package engine

import (
	"context"
	"testing"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRemote is a no-op RemoteNode used where AddNode just needs a
// value satisfying the interface, not a real connection.
type stubRemote struct{}

func (stubRemote) Ping(ctx context.Context) error { return nil }
func (stubRemote) ClusResOnline(ctx context.Context, resourceName, systemName string) error {
	return nil
}
func (stubRemote) ClusResOffline(ctx context.Context, resourceName, systemName string) error {
	return nil
}
func (stubRemote) ClusResAdd(ctx context.Context, resourceName, groupName string) error  { return nil }
func (stubRemote) ClusResDelete(ctx context.Context, resourceName string) error          { return nil }
func (stubRemote) ClusResLink(ctx context.Context, parentName, resourceName string) error { return nil }
func (stubRemote) ClusResUnlink(ctx context.Context, parentName, resourceName string) error {
	return nil
}
func (stubRemote) ClusResClear(ctx context.Context, resourceName string) error { return nil }
func (stubRemote) ClusResModify(ctx context.Context, resourceName, attrName string, value any) error {
	return nil
}
func (stubRemote) ClusResStateMany(ctx context.Context, names []string) (map[string]string, error) {
	return nil, nil
}
func (stubRemote) ClusGrpOnline(ctx context.Context, groupName, systemName string) error  { return nil }
func (stubRemote) ClusGrpOffline(ctx context.Context, groupName, systemName string) error { return nil }
func (stubRemote) ClusGrpAdd(ctx context.Context, groupName string) error                 { return nil }
func (stubRemote) ClusGrpDelete(ctx context.Context, groupName string) error              { return nil }
func (stubRemote) ClusGrpEnable(ctx context.Context, groupName string) error              { return nil }
func (stubRemote) ClusGrpDisable(ctx context.Context, groupName string) error             { return nil }
func (stubRemote) ClusGrpModify(ctx context.Context, groupName, attrName string, value any) error {
	return nil
}
func (stubRemote) ClusGrpStateMany(ctx context.Context, names []string) (map[string]string, error) {
	return nil, nil
}
func (stubRemote) ClusGrpState(ctx context.Context, groupName string) (string, error) { return "", nil }
func (stubRemote) ClusLoad(ctx context.Context) error                                 { return nil }

func TestAddNodeRejectsSelf(t *testing.T) {
	e := newTestEngine(t)
	err := e.AddNode(e.NodeName(), stubRemote{})
	require.Error(t, err)
}

func TestAddNodeAndDeleteNodeUpdateNodeList(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddNode("peer-a", stubRemote{}))
	assert.Contains(t, e.NodeList(), "peer-a")

	_, ok := e.remote("peer-a")
	assert.True(t, ok)

	require.NoError(t, e.DeleteNode("peer-a"))
	assert.NotContains(t, e.NodeList(), "peer-a")
	_, ok = e.remote("peer-a")
	assert.False(t, ok)
}

func TestNodeModifyRejectsImmutableNodeName(t *testing.T) {
	e := newTestEngine(t)
	err := e.NodeModify(attrs.NodeName, "new-name")
	assert.True(t, xerrors.Is(err, xerrors.ErrImmutable))
}
