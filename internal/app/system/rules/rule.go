package rules

import (
	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
)

// Lookup answers cross-collection questions during evaluation.
// *xref.Resolver implements it.
type Lookup interface {
	Resolve(collection, id string) (map[string]any, bool)
	Where(collection, field, value string) []docstore.Document
}

// Rule is one repair. Evaluate reads out.View() and records corrections on
// out; it must not touch rec.Fields.
type Rule interface {
	Family() policy.Family
	Evaluate(rec Record, res Lookup, out *Outcome)
}
