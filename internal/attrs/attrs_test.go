package attrs

import (
	"testing"

	"github.com/icsd/icsd/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBagDefaults(t *testing.T) {
	b := NewBag(ResourceSchema)

	assert.Equal(t, "none", b.GetString(Group))
	assert.False(t, b.GetBool(Enabled))
	assert.Equal(t, 3, b.GetInt(RestartLimit))
	assert.Empty(t, b.Modified())
}

func TestBagSetTypeChecksAndDirties(t *testing.T) {
	ClearDirty()
	b := NewBag(ResourceSchema)

	require.NoError(t, b.Set(Enabled, true))
	assert.True(t, b.GetBool(Enabled))
	assert.True(t, IsDirty())
	assert.Contains(t, b.Modified(), Enabled)

	err := b.Set(Enabled, "yes")
	assert.ErrorIs(t, err, xerrors.ErrInvalidAttrType)

	err = b.Set("NoSuchAttr", 1)
	require.Error(t, err)
}

func TestBagListIsFirstClass(t *testing.T) {
	b := NewBag(GroupSchema)

	err := b.Set(SystemList, "node-a")
	require.Error(t, err, "list attributes reject raw Set with a non-list value")

	require.NoError(t, b.ListAppend(SystemList, "node-a"))
	require.NoError(t, b.ListAppend(SystemList, "node-b"))
	assert.Equal(t, []string{"node-a", "node-b"}, b.GetList(SystemList))

	require.NoError(t, b.ListRemove(SystemList, "node-a"))
	assert.Equal(t, []string{"node-b"}, b.GetList(SystemList))
}

func TestBagListDefaultsAreIndependentPerInstance(t *testing.T) {
	a := NewBag(GroupSchema)
	b := NewBag(GroupSchema)

	require.NoError(t, a.ListAppend(SystemList, "node-a"))
	assert.Empty(t, b.GetList(SystemList))
}

func TestBagModifiedOnlyReportsChanged(t *testing.T) {
	b := NewBag(ResourceSchema)
	require.NoError(t, b.Set(StartProgram, "/bin/true"))

	mod := b.Modified()
	assert.Equal(t, []string{StartProgram}, mod)
}
