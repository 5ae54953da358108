// Package rules evaluates one record at a time against the policy table and
// produces the corrections needed to make it consistent.
//
// Each rule family reads the record as modified by the families before it
// (Outcome.View), so one evaluation already yields the fixpoint: feeding a
// corrected record back through the engine produces no further corrections.
package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
)

// Record is one document under evaluation.
type Record struct {
	Collection string
	ID         string
	Fields     map[string]any
}

// Issue is something a rule noticed and reported rather than fixed, or fixed
// and wants on the record.
type Issue struct {
	Collection string        `json:"collection"`
	RecordID   string        `json:"recordId"`
	Code       string        `json:"code"`
	Detail     string        `json:"detail,omitempty"`
	Family     policy.Family `json:"family"`
}

// Kind classifies a CorrectionSet.
type Kind int

const (
	NoAction Kind = iota
	UpdateFields
	DeleteRecord
)

func (k Kind) String() string {
	switch k {
	case UpdateFields:
		return "update"
	case DeleteRecord:
		return "delete"
	}
	return "none"
}

// CorrectionSet is what evaluation decided for the record itself. Fields maps
// field names to new values or docstore.Delete.
type CorrectionSet struct {
	Kind   Kind
	Fields map[string]any
	Before map[string]any
}

// Outcome accumulates the corrections rules make to one record.
type Outcome struct {
	rec      Record
	view     map[string]any
	set      map[string]any
	own      map[policy.Family]bool
	emitted  map[policy.Family]bool
	family   policy.Family
	deleted  bool
	conflict map[string]bool

	Issues  []Issue
	Emitted []docstore.Write
}

func newOutcome(rec Record) *Outcome {
	return &Outcome{
		rec:      rec,
		view:     docstore.CloneFields(rec.Fields),
		set:      make(map[string]any),
		own:      make(map[policy.Family]bool),
		emitted:  make(map[policy.Family]bool),
		conflict: make(map[string]bool),
	}
}

// Record returns the record as it was before evaluation.
func (o *Outcome) Record() Record { return o.rec }

// View returns the record with every correction so far applied. Rules must
// not modify it directly.
func (o *Outcome) View() map[string]any { return o.view }

// Set assigns field. Setting a field back to its stored value cancels any
// earlier correction to it.
func (o *Outcome) Set(field string, value any) {
	value = docstore.NormalizeValue(value)
	if cur, ok := o.view[field]; ok && docstore.Equal(cur, value) {
		return
	}
	o.view[field] = value
	if orig, ok := o.rec.Fields[field]; ok && docstore.Equal(orig, value) {
		delete(o.set, field)
	} else {
		o.set[field] = value
	}
	o.own[o.family] = true
}

// Unset removes field.
func (o *Outcome) Unset(field string) {
	if _, ok := o.view[field]; !ok {
		return
	}
	delete(o.view, field)
	if _, ok := o.rec.Fields[field]; ok {
		o.set[field] = docstore.Delete
	} else {
		delete(o.set, field)
	}
	o.own[o.family] = true
}

// DeleteRecord marks the whole record for removal.
func (o *Outcome) DeleteRecord() {
	o.deleted = true
	o.own[o.family] = true
}

// Deleted reports whether a rule asked for the record to be removed.
func (o *Outcome) Deleted() bool { return o.deleted }

// Flag records an issue against the record.
func (o *Outcome) Flag(code, detail string) {
	o.Issues = append(o.Issues, Issue{
		Collection: o.rec.Collection,
		RecordID:   o.rec.ID,
		Code:       code,
		Detail:     detail,
		Family:     o.family,
	})
}

// Conflict reports that field could not be inferred uniquely. The field is
// left alone by every later family.
func (o *Outcome) Conflict(field string, candidates []string) {
	if o.conflict[field] {
		return
	}
	o.conflict[field] = true
	o.Flag(CodeAmbiguousInference, field+" candidates "+joinQuoted(candidates))
}

// Conflicted reports whether field was marked ambiguous.
func (o *Outcome) Conflicted(field string) bool { return o.conflict[field] }

// Emit queues a write to another document, such as a rebuilt coach.
func (o *Outcome) Emit(w docstore.Write) {
	w.Families = []string{string(o.family)}
	o.Emitted = append(o.Emitted, w)
	o.emitted[o.family] = true
}

// Families returns the families that corrected something, in evaluation order.
func (o *Outcome) Families() []policy.Family {
	var out []policy.Family
	for _, f := range policy.Families {
		if o.own[f] || o.emitted[f] {
			out = append(out, f)
		}
	}
	return out
}

// CorrectionSet summarizes the corrections to the record itself.
func (o *Outcome) CorrectionSet() CorrectionSet {
	if o.deleted {
		return CorrectionSet{Kind: DeleteRecord, Before: docstore.CloneFields(o.rec.Fields)}
	}
	if len(o.set) == 0 {
		return CorrectionSet{Kind: NoAction}
	}
	cs := CorrectionSet{
		Kind:   UpdateFields,
		Fields: make(map[string]any, len(o.set)),
		Before: make(map[string]any),
	}
	for k, v := range o.set {
		cs.Fields[k] = v
		if prev, ok := o.rec.Fields[k]; ok {
			cs.Before[k] = prev
		}
	}
	return cs
}

// Writes returns the store writes for the record and everything it emitted.
func (o *Outcome) Writes() []docstore.Write {
	var out []docstore.Write
	cs := o.CorrectionSet()
	if cs.Kind != NoAction {
		w := docstore.Write{
			Collection: o.rec.Collection,
			ID:         o.rec.ID,
			Op:         docstore.OpUpdate,
			Fields:     cs.Fields,
			Before:     cs.Before,
			Families:   o.ownFamilies(),
		}
		if cs.Kind == DeleteRecord {
			w.Op = docstore.OpDelete
		}
		out = append(out, w)
	}
	return append(out, o.Emitted...)
}

// ownFamilies lists the families behind the record's own write, leaving out
// families that only emitted writes elsewhere.
func (o *Outcome) ownFamilies() []string {
	var out []string
	for _, f := range policy.Families {
		if o.own[f] {
			out = append(out, string(f))
		}
	}
	return out
}

func joinQuoted(vs []string) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = strconv.Quote(v)
	}
	sort.Strings(s)
	return strings.Join(s, ", ")
}
