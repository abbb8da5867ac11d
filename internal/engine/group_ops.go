package engine

import (
	"sort"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/group"
	"github.com/icsd/icsd/internal/xerrors"
)

// GrpAdd creates a new empty group.
func (e *Engine) GrpAdd(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.groups[name]; exists {
		return xerrors.Wrapf(xerrors.ErrAlreadyExists, "group %q", name)
	}
	if len(e.groups) >= e.system.GetInt(attrs.GroupLimit) {
		return xerrors.Wrapf(xerrors.ErrLimitExceeded, "group limit %d reached", e.system.GetInt(attrs.GroupLimit))
	}
	e.groups[name] = group.New(name)
	e.log.Infow("group added", "group", name)
	return nil
}

// GrpDelete removes an empty group; refuses while the group still has
// members.
func (e *Engine) GrpDelete(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.groups[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "group %q", name)
	}
	if !g.Empty() {
		return xerrors.Wrapf(xerrors.ErrGroupNotEmpty, "group %q", name)
	}
	delete(e.groups, name)
	e.log.Infow("group deleted", "group", name)
	return nil
}

// GrpOnline starts every root resource of a group.
func (e *Engine) GrpOnline(name string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	g.Start(e.groupLookup, e)
	e.BroadcastGroupState(name, g.State(e.groupLookup).String())
	return nil
}

// GrpOnlineAuto brings online every group with AutoStart=true, called
// once at node startup after configuration load.
func (e *Engine) GrpOnlineAuto() {
	e.mu.RLock()
	names := make([]string, 0, len(e.groups))
	for name, g := range e.groups {
		if g.Bag.GetBool(attrs.AutoStart) {
			names = append(names, name)
		}
	}
	e.mu.RUnlock()

	for _, name := range names {
		if g, ok := e.group(name); ok {
			g.Start(e.groupLookup, e)
		}
	}
}

// GrpOffline stops every leaf resource of a group.
func (e *Engine) GrpOffline(name string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	g.Stop(e.groupLookup, e)
	e.BroadcastGroupState(name, g.State(e.groupLookup).String())
	return nil
}

// GrpState returns the aggregate state of each named group, or every
// group if names is empty.
func (e *Engine) GrpState(names []string) (map[string]string, error) {
	e.mu.RLock()
	groups := make(map[string]string, len(e.groups))
	if len(names) == 0 {
		for name := range e.groups {
			groups[name] = ""
		}
	} else {
		for _, name := range names {
			if _, ok := e.groups[name]; !ok {
				e.mu.RUnlock()
				return nil, xerrors.Wrapf(xerrors.ErrNotFound, "group %q", name)
			}
			groups[name] = ""
		}
	}
	e.mu.RUnlock()

	out := make(map[string]string, len(groups))
	for name := range groups {
		g, ok := e.group(name)
		if !ok {
			continue
		}
		out[name] = g.State(e.groupLookup).String()
	}
	return out, nil
}

// GrpEnable enables every member resource of a group.
func (e *Engine) GrpEnable(name string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	g.Enable(e.groupLookup)
	return nil
}

// GrpDisable disables every member resource of a group.
func (e *Engine) GrpDisable(name string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	g.Disable(e.groupLookup)
	return nil
}

// GrpEnableResources is an alias kept for RPC-surface parity with
// grp_enable_resources; identical to GrpEnable. Both set Enabled on every
// member resource, and neither changes the group's own Enabled attribute.
func (e *Engine) GrpEnableResources(name string) error { return e.GrpEnable(name) }

// GrpDisableResources mirrors grp_disable_resources.
func (e *Engine) GrpDisableResources(name string) error { return e.GrpDisable(name) }

// GrpFlush aborts in-flight commands and propagation for every member
// of a group.
func (e *Engine) GrpFlush(name string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	g.Flush(e.groupLookup, e)
	return nil
}

// GrpClear clears the fault state of every member of a group.
func (e *Engine) GrpClear(name string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	g.Clear(e.groupLookup, e)
	return nil
}

// GrpResources lists a group's member resource names.
func (e *Engine) GrpResources(name string) ([]string, error) {
	g, err := e.mustGroup(name)
	if err != nil {
		return nil, err
	}
	return g.Members(), nil
}

// GrpList returns every group name, sorted for a stable CLI listing.
func (e *Engine) GrpList() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.groups))
	for name := range e.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GrpValue returns one attribute's value on a group.
func (e *Engine) GrpValue(name, attrName string) (any, error) {
	g, err := e.mustGroup(name)
	if err != nil {
		return nil, err
	}
	v, ok := g.Bag.Get(attrName)
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", attrName)
	}
	return v, nil
}

// GrpModify sets one attribute on a group.
func (e *Engine) GrpModify(name, attrName string, value any) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	return g.Bag.Set(attrName, value)
}

// GrpAttrAppend appends value to a list attribute on a group.
func (e *Engine) GrpAttrAppend(name, attrName, value string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	return g.Bag.ListAppend(attrName, value)
}

// GrpAttrRemove removes value from a list attribute on a group.
func (e *Engine) GrpAttrRemove(name, attrName, value string) error {
	g, err := e.mustGroup(name)
	if err != nil {
		return err
	}
	return g.Bag.ListRemove(attrName, value)
}

// GrpAttr returns every attribute value on a group.
func (e *Engine) GrpAttr(name string) (map[string]any, error) {
	g, err := e.mustGroup(name)
	if err != nil {
		return nil, err
	}
	return g.Bag.All(), nil
}

func (e *Engine) group(name string) (*group.Group, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.groups[name]
	return g, ok
}

func (e *Engine) mustGroup(name string) (*group.Group, error) {
	g, ok := e.group(name)
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrNotFound, "group %q", name)
	}
	return g, nil
}
