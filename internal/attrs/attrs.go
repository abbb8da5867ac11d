// Package attrs implements the typed key/value attribute bag that backs
// every entity in icsd (resources, groups, the node's system attributes).
//
// Attributes are declared once per entity kind as a Descriptor table,
// and every Bag instance carries its own deep-copied defaults plus a
// dirty flag that config.Persister polls.
package attrs

import (
	"sync"
	"sync/atomic"

	"github.com/icsd/icsd/internal/xerrors"
)

// Type enumerates the attribute value kinds a Descriptor may declare.
type Type int

const (
	TypeString Type = iota
	TypeBool
	TypeInt
	TypeList
)

// Descriptor is the static definition of one attribute: its name, default
// value, type, and whether it must be set before the owning entity is
// usable (e.g. a Resource's Group attribute).
type Descriptor struct {
	Name        string
	Default     any
	Type        Type
	Description string
	Required    bool
}

// Schema is an ordered table of descriptors for one entity kind (Resource,
// Group, or the node's System attributes).
type Schema []Descriptor

// Dirty is a single process-wide flag set by any Bag.Set/ListAppend/
// ListRemove call and cleared by the config persister.
var dirty atomic.Bool

// MarkDirty flips the process-wide dirty flag. Exported so config.Persister
// and tests can inspect/drive it directly.
func MarkDirty() { dirty.Store(true) }

// IsDirty reports the process-wide dirty flag.
func IsDirty() bool { return dirty.Load() }

// ClearDirty resets the process-wide dirty flag; called by the persister
// after a successful write.
func ClearDirty() { dirty.Store(false) }

// Bag is one instance of a Schema: the live attribute values for a single
// Resource, Group, or node.
type Bag struct {
	mu     sync.RWMutex
	schema Schema
	byName map[string]*Descriptor
	values map[string]any
}

// NewBag creates a Bag for schema with every attribute at its descriptor
// default. List defaults are deep-copied so mutating one instance's list
// never affects another's.
func NewBag(schema Schema) *Bag {
	b := &Bag{
		schema: schema,
		byName: make(map[string]*Descriptor, len(schema)),
		values: make(map[string]any, len(schema)),
	}
	for i := range schema {
		d := &schema[i]
		b.byName[d.Name] = d
		b.values[d.Name] = cloneDefault(d.Default)
	}
	return b
}

func cloneDefault(v any) any {
	if list, ok := v.([]string); ok {
		out := make([]string, len(list))
		copy(out, list)
		return out
	}
	return v
}

// Get returns the current value of name and whether it exists.
func (b *Bag) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// GetString/GetBool/GetInt/GetList are typed convenience accessors that
// return the attribute's zero value if unset or of the wrong type.
func (b *Bag) GetString(name string) string {
	v, _ := b.Get(name)
	s, _ := v.(string)
	return s
}

func (b *Bag) GetBool(name string) bool {
	v, _ := b.Get(name)
	bv, _ := v.(bool)
	return bv
}

func (b *Bag) GetInt(name string) int {
	v, _ := b.Get(name)
	iv, _ := v.(int)
	return iv
}

func (b *Bag) GetList(name string) []string {
	v, _ := b.Get(name)
	lv, _ := v.([]string)
	out := make([]string, len(lv))
	copy(out, lv)
	return out
}

// Set assigns value to name, type-checking against the descriptor. Lists
// reject non-list values. Flips the dirty flag on success.
func (b *Bag) Set(name string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.byName[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", name)
	}
	if err := checkType(d, value); err != nil {
		return err
	}
	b.values[name] = value
	MarkDirty()
	return nil
}

func checkType(d *Descriptor, value any) error {
	switch d.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q expects string", d.Name)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q expects bool", d.Name)
		}
	case TypeInt:
		if _, ok := value.(int); !ok {
			return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q expects int", d.Name)
		}
	case TypeList:
		if _, ok := value.([]string); !ok {
			return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q expects a list", d.Name)
		}
	}
	return nil
}

// ListAppend appends value to a list attribute, distinct from Set so
// CLI -append semantics preserve list identity.
func (b *Bag) ListAppend(name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.byName[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", name)
	}
	if d.Type != TypeList {
		return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q is not a list", name)
	}
	cur, _ := b.values[name].([]string)
	b.values[name] = append(append([]string{}, cur...), value)
	MarkDirty()
	return nil
}

// ListRemove removes the first occurrence of value from a list attribute.
func (b *Bag) ListRemove(name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.byName[name]
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", name)
	}
	if d.Type != TypeList {
		return xerrors.Wrapf(xerrors.ErrInvalidAttrType, "attribute %q is not a list", name)
	}
	cur, _ := b.values[name].([]string)
	out := make([]string, 0, len(cur))
	removed := false
	for _, v := range cur {
		if !removed && v == value {
			removed = true
			continue
		}
		out = append(out, v)
	}
	b.values[name] = out
	MarkDirty()
	return nil
}

// Modified returns the names of every attribute whose current value
// differs from its descriptor default.
func (b *Bag) Modified() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for _, d := range b.schema {
		if !equalValue(b.values[d.Name], d.Default) {
			out = append(out, d.Name)
		}
	}
	return out
}

func equalValue(a, b any) bool {
	al, aok := a.([]string)
	bl, bok := b.([]string)
	if aok || bok {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if al[i] != bl[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// All returns a snapshot of every attribute value, keyed by name. Used by
// config.File to serialize only non-default attributes.
func (b *Bag) All() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = cloneDefault(v)
	}
	return out
}

// Descriptor looks up the static descriptor for name.
func (b *Bag) Descriptor(name string) (Descriptor, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}
