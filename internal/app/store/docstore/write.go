package docstore

import (
	"sort"
	"strings"
)

// Op is the kind of a Write.
type Op int

const (
	OpUpdate Op = iota + 1 // merge Fields into an existing document
	OpUpsert               // merge Fields, creating the document if needed
	OpDelete               // remove the document
	OpCreate               // create only if absent
)

func (o Op) String() string {
	switch o {
	case OpUpdate:
		return "update"
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	case OpCreate:
		return "create"
	}
	return "unknown"
}

// MarshalText renders the op by name in reports.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

type deleteMarker struct{}

func (deleteMarker) String() string { return "<delete>" }

// MarshalText renders the marker in reports.
func (deleteMarker) MarshalText() ([]byte, error) { return []byte("<delete>"), nil }

// Delete is the field value that removes a field in an update or upsert.
var Delete any = deleteMarker{}

// IsDelete reports whether v is the delete marker.
func IsDelete(v any) bool {
	_, ok := v.(deleteMarker)
	return ok
}

// Write is one pending mutation. Before holds the prior value of every field
// in Fields (absent fields are omitted from Before) so dry runs can show the
// full before/after detail.
type Write struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Op         Op             `json:"op"`
	Fields     map[string]any `json:"fields,omitempty"`
	Before     map[string]any `json:"before,omitempty"`
	Families   []string       `json:"families,omitempty"`
}

// Key identifies the target document.
func (w Write) Key() string {
	return w.Collection + "/" + w.ID
}

// SetFields returns the non-delete field assignments.
func (w Write) SetFields() map[string]any {
	out := make(map[string]any, len(w.Fields))
	for k, v := range w.Fields {
		if !IsDelete(v) {
			out[k] = v
		}
	}
	return out
}

// UnsetFields returns the fields removed by this write, sorted.
func (w Write) UnsetFields() []string {
	var out []string
	for k, v := range w.Fields {
		if IsDelete(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// SortWrites orders writes by collection then id then op for stable plans.
func SortWrites(ws []Write) {
	sort.SliceStable(ws, func(i, j int) bool {
		if c := strings.Compare(ws[i].Collection, ws[j].Collection); c != 0 {
			return c < 0
		}
		if ws[i].ID != ws[j].ID {
			return ws[i].ID < ws[j].ID
		}
		return ws[i].Op < ws[j].Op
	})
}
