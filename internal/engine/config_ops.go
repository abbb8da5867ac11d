package engine

import (
	"strconv"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/config"
	"github.com/icsd/icsd/internal/xerrors"
)

// Snapshot serializes the engine's live state into a config.File,
// writing only attributes that differ from their descriptor default.
// Used both by config.Persister on its periodic flush and by the dump
// RPC.
func (e *Engine) Snapshot() config.File {
	e.mu.RLock()
	defer e.mu.RUnlock()

	f := config.File{
		System:    config.SystemEntry{Attributes: modifiedValues(e.system)},
		Alerts:    config.AlertsEntry{Attributes: e.alertAttributes()},
		Groups:    make(map[string]config.GroupEntry, len(e.groups)),
		Resources: make(map[string]config.ResourceEntry, len(e.resources)),
	}

	for name, g := range e.groups {
		f.Groups[name] = config.GroupEntry{Attributes: modifiedValues(g.Bag)}
	}
	for name, r := range e.resources {
		f.Resources[name] = config.ResourceEntry{
			Attributes:   modifiedValues(r.Bag),
			Dependencies: r.Dependencies(),
		}
	}
	return f
}

// alertAttributes captures the alert handler's threshold and recipient
// list as config attributes; neither lives in an attrs.Bag, so Snapshot
// reads them straight off e.alertHandler instead of through Modified.
func (e *Engine) alertAttributes() map[string]any {
	out := map[string]any{attrs.AlertLevel: e.AlertLevel()}
	if recipients := e.AlertRecipients(); len(recipients) > 0 {
		out[attrs.AlertRecipients] = recipients
	}
	return out
}

func modifiedValues(bag *attrs.Bag) map[string]any {
	all := bag.All()
	out := make(map[string]any, len(bag.Modified()))
	for _, name := range bag.Modified() {
		out[name] = all[name]
	}
	return out
}

// Load re-reads main.cf from disk and applies it, the same operation
// the config watcher performs automatically on an external edit, made
// available as an explicit RPC for an operator-triggered reload.
func (e *Engine) Load() error {
	f, err := config.ReadFile(e.paths.ConfFile())
	if err != nil {
		return xerrors.Wrap(err, "read config file")
	}
	return e.LoadConfig(f)
}

// LoadConfig restores engine state from a config.File, creating
// resources after their owning groups and wiring dependency edges only
// once every resource exists, so parents always exist at link time. A
// failure partway through load is fatal at startup — the caller
// (cmd/icsd) treats a non-nil error as a reason to exit.
func (e *Engine) LoadConfig(f config.File) error {
	for name, value := range f.System.Attributes {
		if err := e.setTyped(e.system, name, value); err != nil {
			return xerrors.Wrapf(err, "system attribute %q", name)
		}
	}

	if err := e.loadAlerts(f.Alerts); err != nil {
		return err
	}

	for groupName, entry := range f.Groups {
		if err := e.GrpAdd(groupName); err != nil && !xerrors.Is(err, xerrors.ErrAlreadyExists) {
			return xerrors.Wrapf(err, "group %q", groupName)
		}
		g, err := e.mustGroup(groupName)
		if err != nil {
			return err
		}
		for name, value := range entry.Attributes {
			if err := e.setTyped(g.Bag, name, value); err != nil {
				return xerrors.Wrapf(err, "group %q attribute %q", groupName, name)
			}
		}
	}

	for resourceName, entry := range f.Resources {
		groupName, _ := entry.Attributes[attrs.Group].(string)
		if err := e.ResAdd(resourceName, groupName); err != nil {
			return xerrors.Wrapf(err, "resource %q", resourceName)
		}
		r, err := e.mustResource(resourceName)
		if err != nil {
			return err
		}
		for name, value := range entry.Attributes {
			if err := e.setTyped(r.Bag, name, value); err != nil {
				return xerrors.Wrapf(err, "resource %q attribute %q", resourceName, name)
			}
		}
	}

	// Dependency edges are linked only after every resource in the file
	// exists, so a child loaded before its parent still links correctly.
	for resourceName, entry := range f.Resources {
		for _, parentName := range entry.Dependencies {
			if err := e.ResLink(parentName, resourceName); err != nil {
				return xerrors.Wrapf(err, "link %q -> %q", parentName, resourceName)
			}
		}
	}

	return nil
}

// loadAlerts restores the alert threshold and recipient list, neither
// of which is backed by an attrs.Bag.
func (e *Engine) loadAlerts(entry config.AlertsEntry) error {
	if level, ok := entry.Attributes[attrs.AlertLevel].(string); ok && level != "" {
		if err := e.AlertSetLevel(level); err != nil {
			return xerrors.Wrapf(err, "alert attribute %q", attrs.AlertLevel)
		}
	}
	if raw, ok := entry.Attributes[attrs.AlertRecipients]; ok {
		recipients, err := toStringSlice(raw)
		if err != nil {
			return xerrors.Wrapf(err, "alert attribute %q", attrs.AlertRecipients)
		}
		e.alertHandler.SetRecipients(recipients)
	}
	return nil
}

func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, xerrors.Wrap(xerrors.ErrInvalidAttrType, "expected a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, xerrors.Wrap(xerrors.ErrInvalidAttrType, "expected a list of strings")
	}
}

// setTyped coerces a JSON-decoded value (float64/string/bool/[]any) to
// the descriptor's declared type before calling Bag.Set, since
// encoding/json never reproduces Go's int or []string natively.
func (e *Engine) setTyped(bag *attrs.Bag, name string, value any) error {
	d, ok := bag.Descriptor(name)
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", name)
	}
	switch d.Type {
	case attrs.TypeInt:
		switch v := value.(type) {
		case float64:
			return bag.Set(name, int(v))
		case int:
			return bag.Set(name, v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return bag.Set(name, n)
			}
		}
		return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q expects int", name)
	case attrs.TypeBool:
		if s, ok := value.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return bag.Set(name, b)
			}
		}
		return bag.Set(name, value)
	case attrs.TypeList:
		switch v := value.(type) {
		case []string:
			return bag.Set(name, v)
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, _ := item.(string)
				out = append(out, s)
			}
			return bag.Set(name, out)
		}
		return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q expects a list", name)
	default:
		return bag.Set(name, value)
	}
}
