package rules

import (
	"sort"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
)

// derive infers scope fields from parent records. It never guesses: when the
// parents disagree the field is left alone and flagged.
type derive struct {
	derivations []policy.Derivation
	table       policy.Table
}

func (derive) Family() policy.Family { return policy.FamilyDerive }

func (r derive) Evaluate(rec Record, res Lookup, out *Outcome) {
	for _, d := range r.derivations {
		view := out.View()
		candidates := r.candidates(d, view, res)
		switch len(candidates) {
		case 0:
			continue
		case 1:
		default:
			out.Conflict(d.Field, candidates)
			continue
		}

		want := candidates[0]
		cur := docstore.FieldString(view, d.Field)
		if cur == want {
			continue
		}
		if docstore.IsBlank(view[d.Field]) || r.table.IsSentinel(d.Field, cur) || d.OverwriteMismatch {
			out.Set(d.Field, want)
		}
	}
}

// candidates returns the distinct non-empty, non-sentinel values the parents
// offer for d.Field, sorted.
func (r derive) candidates(d policy.Derivation, view map[string]any, res Lookup) []string {
	seen := make(map[string]bool)
	for _, src := range d.Sources {
		fk := docstore.FieldString(view, src.Via)
		if fk == "" || r.table.IsSentinel(src.Via, fk) {
			continue
		}
		parent, ok := res.Resolve(src.Collection, fk)
		if !ok {
			continue
		}
		v := docstore.FieldString(parent, src.Field)
		if v == "" || r.table.IsSentinel(d.Field, v) {
			continue
		}
		seen[v] = true
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// defaultFill writes the configured sentinel into absent scope fields.
type defaultFill struct {
	fields []string
	table  policy.Table
}

func (defaultFill) Family() policy.Family { return policy.FamilyDefaultFill }

func (r defaultFill) Evaluate(rec Record, _ Lookup, out *Outcome) {
	for _, field := range r.fields {
		if out.Conflicted(field) {
			continue
		}
		if !docstore.IsBlank(out.View()[field]) {
			continue
		}
		if s, ok := r.table.Sentinel(field); ok {
			out.Set(field, s)
		}
	}
}
