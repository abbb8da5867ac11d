package engine

import (
	"sort"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/resource"
	"github.com/icsd/icsd/internal/xerrors"
)

// ResOnline brings a resource online. MonitorOnly resources reject the
// operation; an already-online resource is a silent no-op.
func (e *Engine) ResOnline(name string) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	if r.Bag.GetBool(attrs.MonitorOnly) {
		return xerrors.Newf("unable to online resource %q, MonitorOnly mode enabled", name)
	}
	if r.State != resource.Online {
		r.ChangeState(e, resource.Starting, false)
	}
	return nil
}

// ResOffline brings a resource offline.
func (e *Engine) ResOffline(name string) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	if r.Bag.GetBool(attrs.MonitorOnly) {
		return xerrors.Newf("unable to offline resource %q, MonitorOnly mode enabled", name)
	}
	if r.State != resource.Offline {
		r.ChangeState(e, resource.Stopping, false)
	}
	return nil
}

// ResAdd creates a new resource in groupName. Rejects a duplicate name,
// a missing group, and exceeding ResourceLimit, mutating nothing on
// error.
func (e *Engine) ResAdd(name, groupName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.resources[name]; exists {
		return xerrors.Wrapf(xerrors.ErrAlreadyExists, "resource %q", name)
	}
	g, ok := e.groups[groupName]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "group %q", groupName)
	}
	if len(e.resources) >= e.system.GetInt(attrs.ResourceLimit) {
		return xerrors.Wrapf(xerrors.ErrLimitExceeded, "resource limit %d reached", e.system.GetInt(attrs.ResourceLimit))
	}

	r := resource.New(name, groupName)
	e.resources[name] = r
	g.AddResource(name)
	e.log.Infow("resource added", "resource", name, "group", groupName)
	return nil
}

// ResDelete removes a resource and every dependency edge referencing it.
func (e *Engine) ResDelete(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.resources[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", name)
	}

	for _, parentName := range r.Dependencies() {
		if parent, ok := e.resources[parentName]; ok {
			parent.RemoveChild(name)
		}
	}
	for _, childName := range e.childrenOf(name) {
		if child, ok := e.resources[childName]; ok {
			child.RemoveParent(name)
		}
	}

	if g, ok := e.groups[r.Bag.GetString(attrs.Group)]; ok {
		g.DeleteResource(name)
	}
	delete(e.resources, name)
	e.log.Infow("resource deleted", "resource", name)
	return nil
}

// childrenOf scans every resource for one that lists name as a parent.
// Resource only stores its own parent/child lists, so a reverse lookup
// needs this O(n) scan; engine-level operations like ResDelete run
// rarely enough that this is acceptable over maintaining an extra
// reverse index.
func (e *Engine) childrenOf(name string) []string {
	var out []string
	for childName, r := range e.resources {
		for _, p := range r.Dependencies() {
			if p == name {
				out = append(out, childName)
				break
			}
		}
	}
	return out
}

// ResState returns the state of each named resource, or every resource
// if names is empty.
func (e *Engine) ResState(names []string) (map[string]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]string)
	if len(names) == 0 {
		for name, r := range e.resources {
			out[name] = r.State.String()
		}
		return out, nil
	}
	for _, name := range names {
		r, ok := e.resources[name]
		if !ok {
			return nil, xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", name)
		}
		out[name] = r.State.String()
	}
	return out, nil
}

// ResLink adds a parent→resource dependency edge, rejecting a
// cross-group link.
func (e *Engine) ResLink(parentName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.resources[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", name)
	}
	parent, ok := e.resources[parentName]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", parentName)
	}
	if r.Bag.GetString(attrs.Group) != parent.Bag.GetString(attrs.Group) {
		return xerrors.Wrapf(xerrors.ErrCrossGroupLink, "%q and %q", name, parentName)
	}
	if wouldCycle(e.resources, name, parentName) {
		return xerrors.Wrapf(xerrors.ErrCycle, "%q -> %q", parentName, name)
	}
	r.AddParent(parentName)
	parent.AddChild(name)
	e.log.Infow("resource linked", "resource", name, "parent", parentName)
	return nil
}

// wouldCycle reports whether adding parentName as an ancestor of name
// would create a cycle, by checking whether name is already reachable
// from parentName via existing parent edges.
func wouldCycle(all map[string]*resource.Resource, name, parentName string) bool {
	if name == parentName {
		return true
	}
	seen := map[string]bool{}
	var walk func(string) bool
	walk = func(cur string) bool {
		if cur == name {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		r, ok := all[cur]
		if !ok {
			return false
		}
		for _, p := range r.Dependencies() {
			if walk(p) {
				return true
			}
		}
		return false
	}
	return walk(parentName)
}

// ResUnlink removes a parent→resource dependency edge.
func (e *Engine) ResUnlink(parentName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.resources[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", name)
	}
	parent, ok := e.resources[parentName]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", parentName)
	}
	r.RemoveParent(parentName)
	parent.RemoveChild(name)
	return nil
}

// ResClear clears a faulted resource back to OFFLINE.
func (e *Engine) ResClear(name string) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	r.Clear(e)
	return nil
}

// ResProbe manually triggers an immediate poll cycle.
func (e *Engine) ResProbe(name string) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	r.Probe(e)
	return nil
}

// DepRow is one dependency edge, shaped for res_dep's tabular response.
type DepRow struct {
	Group  string
	Parent string
	Child  string
}

// ResDep lists dependency edges. With no names, every edge in every
// group; with names, every edge touching each named resource as either
// parent or child.
func (e *Engine) ResDep(names []string) ([]DepRow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var rows []DepRow
	if len(names) == 0 {
		for rname, r := range e.resources {
			group := r.Bag.GetString(attrs.Group)
			for _, parent := range r.Dependencies() {
				rows = append(rows, DepRow{Group: group, Parent: parent, Child: rname})
			}
		}
		return rows, nil
	}

	for _, name := range names {
		r, ok := e.resources[name]
		if !ok {
			return nil, xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", name)
		}
		group := r.Bag.GetString(attrs.Group)
		for _, parent := range r.Dependencies() {
			rows = append(rows, DepRow{Group: group, Parent: parent, Child: name})
		}
		for _, child := range e.childrenOf(name) {
			rows = append(rows, DepRow{Group: group, Parent: name, Child: child})
		}
	}
	return rows, nil
}

// ResList returns every resource name, sorted for a stable CLI listing.
func (e *Engine) ResList() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.resources))
	for name := range e.resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ResValue returns one attribute's value on a resource.
func (e *Engine) ResValue(name, attrName string) (any, error) {
	r, err := e.mustResource(name)
	if err != nil {
		return nil, err
	}
	v, ok := r.Bag.Get(attrName)
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", attrName)
	}
	return v, nil
}

// ResModify sets one attribute on a resource.
func (e *Engine) ResModify(name, attrName string, value any) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	return r.Bag.Set(attrName, value)
}

// ResAttrAppend appends value to a list attribute on a resource,
// backing the CLI's -append subflag.
func (e *Engine) ResAttrAppend(name, attrName, value string) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	return r.Bag.ListAppend(attrName, value)
}

// ResAttrRemove removes value from a list attribute on a resource.
func (e *Engine) ResAttrRemove(name, attrName, value string) error {
	r, err := e.mustResource(name)
	if err != nil {
		return err
	}
	return r.Bag.ListRemove(attrName, value)
}

// ResAttr returns every attribute value on a resource.
func (e *Engine) ResAttr(name string) (map[string]any, error) {
	r, err := e.mustResource(name)
	if err != nil {
		return nil, err
	}
	return r.Bag.All(), nil
}

func (e *Engine) mustResource(name string) (*resource.Resource, error) {
	r, ok := e.Lookup(name)
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrNotFound, "resource %q", name)
	}
	return r, nil
}
