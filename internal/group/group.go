// Package group implements the service group: a named collection of
// resources whose aggregate state is derived from its members, and
// whose Start/Stop seed dependency propagation at the roots and leaves
// of the resource DAG.
package group

import (
	"sync"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/resource"
)

// State is a group's aggregate state.
type State int

const (
	Online State = iota
	Partial
	Offline
	Faulted
	Unknown
)

func (s State) String() string {
	switch s {
	case Online:
		return "ONLINE"
	case Partial:
		return "PARTIAL"
	case Offline:
		return "OFFLINE"
	case Faulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}

// Group is a named set of resources managed as a unit.
type Group struct {
	mu sync.RWMutex

	Name    string
	Bag     *attrs.Bag
	members []string // resource names, insertion order preserved
}

// New creates an empty group named name.
func New(name string) *Group {
	return &Group{Name: name, Bag: attrs.NewBag(attrs.GroupSchema)}
}

// AddResource registers resourceName as a member.
func (g *Group) AddResource(resourceName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, resourceName)
}

// DeleteResource removes resourceName from membership.
func (g *Group) DeleteResource(resourceName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.members[:0]
	for _, m := range g.members {
		if m != resourceName {
			out = append(out, m)
		}
	}
	g.members = out
}

// Members returns the group's resource names in insertion order.
func (g *Group) Members() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

// Empty reports whether the group has no members, the precondition for
// grp_delete.
func (g *Group) Empty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members) == 0
}

// Lookup resolves a member resource by name through the supervisor;
// Start/Stop/State need this to read each member's live state.
type Lookup func(name string) (*resource.Resource, bool)

// State computes the group's aggregate state: MonitorOnly members are
// always excluded, and Enabled=false members are excluded only when the
// group's IgnoreDisabled attribute is set. An empty group is UNKNOWN; a
// group whose member set is empty after exclusion is OFFLINE; more than
// one distinct remaining state is PARTIAL; otherwise the single
// remaining state maps directly, except that STARTING and STOPPING map
// to PARTIAL and UNKNOWN to UNKNOWN.
func (g *Group) State(lookup Lookup) State {
	members := g.Members()
	if len(members) == 0 {
		return Unknown
	}
	ignoreDisabled := g.Bag.GetBool(attrs.IgnoreDisabled)

	seen := map[resource.State]bool{}
	for _, name := range members {
		r, ok := lookup(name)
		if !ok {
			continue
		}
		if r.Bag.GetBool(attrs.MonitorOnly) {
			continue
		}
		if ignoreDisabled && !r.Bag.GetBool(attrs.Enabled) {
			continue
		}
		seen[r.State] = true
	}

	if len(seen) == 0 {
		return Offline
	}
	if len(seen) > 1 {
		return Partial
	}
	for s := range seen {
		switch s {
		case resource.Online:
			return Online
		case resource.Offline:
			return Offline
		case resource.Faulted:
			return Faulted
		case resource.Starting, resource.Stopping:
			return Partial
		default:
			return Unknown
		}
	}
	return Unknown
}

// Flush flushes every member, aborting in-flight commands and stopping
// any propagation already underway. Used to start both Start and Stop
// from a clean slate.
func (g *Group) Flush(lookup Lookup, sup resource.Supervisor) {
	for _, name := range g.Members() {
		if r, ok := lookup(name); ok {
			r.Flush(sup)
		}
	}
}

// Start flushes the group, then begins bringing every root resource (one
// with no parents) online; each root propagates the transition down the
// dependency chain on completion.
func (g *Group) Start(lookup Lookup, sup resource.Supervisor) {
	g.Flush(lookup, sup)
	for _, name := range g.Members() {
		r, ok := lookup(name)
		if !ok || len(r.Parents) > 0 {
			continue
		}
		r.Propagate = true
		if r.State != resource.Online {
			r.ChangeState(sup, resource.Starting, false)
		} else {
			r.ChangeState(sup, resource.Online, true)
		}
	}
}

// Stop flushes the group, then begins taking every leaf resource (one
// with no children) offline; each leaf propagates the transition up the
// dependency chain on completion.
func (g *Group) Stop(lookup Lookup, sup resource.Supervisor) {
	g.Flush(lookup, sup)
	for _, name := range g.Members() {
		r, ok := lookup(name)
		if !ok || len(r.Children) > 0 {
			continue
		}
		r.Propagate = true
		if r.State != resource.Offline {
			r.ChangeState(sup, resource.Stopping, false)
		} else {
			r.ChangeState(sup, resource.Offline, true)
		}
	}
}

// Clear clears every member's fault state.
func (g *Group) Clear(lookup Lookup, sup resource.Supervisor) {
	for _, name := range g.Members() {
		if r, ok := lookup(name); ok {
			r.Clear(sup)
		}
	}
}

// Enable sets Enabled=true on every member.
func (g *Group) Enable(lookup Lookup) {
	for _, name := range g.Members() {
		if r, ok := lookup(name); ok {
			_ = r.Bag.Set(attrs.Enabled, true)
		}
	}
}

// Disable sets Enabled=false on every member.
func (g *Group) Disable(lookup Lookup) {
	for _, name := range g.Members() {
		if r, ok := lookup(name); ok {
			_ = r.Bag.Set(attrs.Enabled, false)
		}
	}
}
