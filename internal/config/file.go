package config

import (
	"encoding/json"
	"os"

	"github.com/icsd/icsd/internal/xerrors"
)

// File is the on-disk shape of main.cf: system attributes, the alert
// threshold/recipient list, every group, and every resource with its
// attributes (Group folded in as an attribute) and dependency edges.
// Only non-default attribute values are serialized (via
// attrs.Bag.Modified), keeping main.cf readable and giving a stable,
// minimal diff between saves.
type File struct {
	System    SystemEntry              `json:"system"`
	Alerts    AlertsEntry              `json:"alerts"`
	Groups    map[string]GroupEntry    `json:"groups"`
	Resources map[string]ResourceEntry `json:"resources"`
}

// SystemEntry holds the node's own system attributes (ClusterName,
// NodeName, ResourceLimit, ...).
type SystemEntry struct {
	Attributes map[string]any `json:"attributes"`
}

// AlertsEntry holds the alert subsystem's persisted state: the
// threshold name under AlertLevel and the mail recipient list under
// AlertRecipients. Neither attribute lives in an attrs.Bag; both are
// read and written through the engine's alert handler.
type AlertsEntry struct {
	Attributes map[string]any `json:"attributes"`
}

// GroupEntry is one group's persisted state.
type GroupEntry struct {
	Attributes map[string]any `json:"attributes"`
}

// ResourceEntry is one resource's persisted state. Group is stored as
// an ordinary attribute (key "Group") inside Attributes, matching the
// wire format; Dependencies lists parent resource names.
type ResourceEntry struct {
	Attributes   map[string]any `json:"attributes"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// ReadFile loads and parses a main.cf from path. A missing file returns
// a zero File and no error so a first-run node starts from empty
// configuration instead of treating a missing file as fatal.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyFile(), nil
		}
		return File{}, xerrors.Wrapf(err, "read config file %s", path)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, xerrors.Wrapf(err, "parse config file %s", path)
	}
	if f.System.Attributes == nil {
		f.System.Attributes = map[string]any{}
	}
	if f.Alerts.Attributes == nil {
		f.Alerts.Attributes = map[string]any{}
	}
	if f.Groups == nil {
		f.Groups = map[string]GroupEntry{}
	}
	if f.Resources == nil {
		f.Resources = map[string]ResourceEntry{}
	}
	return f, nil
}

func emptyFile() File {
	return File{
		System:    SystemEntry{Attributes: map[string]any{}},
		Alerts:    AlertsEntry{Attributes: map[string]any{}},
		Groups:    map[string]GroupEntry{},
		Resources: map[string]ResourceEntry{},
	}
}

// WriteFile serializes f as indented, key-sorted JSON (encoding/json
// sorts map keys by default, giving a stable diff between saves).
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return xerrors.Wrap(err, "marshal config file")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xerrors.Wrapf(err, "write config file %s", path)
	}
	return nil
}
