package group

import (
	"testing"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enable(r *resource.Resource) { _ = r.Bag.Set(attrs.Enabled, true) }

func TestGroupStateUnknownWhenEmpty(t *testing.T) {
	g := New("g1")
	assert.Equal(t, Unknown, g.State(func(string) (*resource.Resource, bool) { return nil, false }))
}

func TestGroupStateSingleAndPartial(t *testing.T) {
	db := resource.New("db", "g1")
	app := resource.New("app", "g1")
	enable(db)
	enable(app)
	db.State = resource.Online
	app.State = resource.Online

	g := New("g1")
	g.AddResource("db")
	g.AddResource("app")

	byName := map[string]*resource.Resource{"db": db, "app": app}
	lookup := func(name string) (*resource.Resource, bool) { r, ok := byName[name]; return r, ok }

	require.Equal(t, Online, g.State(lookup))

	app.State = resource.Offline
	assert.Equal(t, Partial, g.State(lookup))
}

func TestGroupStateAlwaysIgnoresMonitorOnlyMembers(t *testing.T) {
	db := resource.New("db", "g1")
	enable(db)
	db.State = resource.Online

	probe := resource.New("probe", "g1")
	enable(probe)
	_ = probe.Bag.Set(attrs.MonitorOnly, true)
	probe.State = resource.Faulted

	g := New("g1")
	g.AddResource("db")
	g.AddResource("probe")

	byName := map[string]*resource.Resource{"db": db, "probe": probe}
	lookup := func(name string) (*resource.Resource, bool) { r, ok := byName[name]; return r, ok }

	assert.Equal(t, Online, g.State(lookup))
}

func TestGroupStateIgnoreDisabledTogglesDisabledMemberInclusion(t *testing.T) {
	db := resource.New("db", "g1")
	enable(db)
	db.State = resource.Online

	disabled := resource.New("sidecar", "g1") // Enabled stays false, State zero value Offline

	g := New("g1")
	g.AddResource("db")
	g.AddResource("sidecar")

	byName := map[string]*resource.Resource{"db": db, "sidecar": disabled}
	lookup := func(name string) (*resource.Resource, bool) { r, ok := byName[name]; return r, ok }

	// IgnoreDisabled=false (default): the disabled member's OFFLINE state
	// still counts, so db's ONLINE and sidecar's OFFLINE make it PARTIAL.
	assert.Equal(t, Partial, g.State(lookup))

	require.NoError(t, g.Bag.Set(attrs.IgnoreDisabled, true))
	assert.Equal(t, Online, g.State(lookup))
}

func TestGroupEmptyAfterDeleteResource(t *testing.T) {
	g := New("g1")
	g.AddResource("db")
	require.False(t, g.Empty())

	g.DeleteResource("db")
	assert.True(t, g.Empty())
}
