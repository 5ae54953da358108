package rules

import (
	"fmt"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
)

// orphan checks foreign keys against the snapshot and applies the
// relation's action to those that do not resolve.
type orphan struct {
	relations []policy.Relation
	table     policy.Table
}

func (orphan) Family() policy.Family { return policy.FamilyOrphan }

func (r orphan) Evaluate(rec Record, res Lookup, out *Outcome) {
	for _, rel := range r.relations {
		v := docstore.FieldString(out.View(), rel.Field)
		var detail string
		switch {
		case v == "":
			if !rel.Required {
				continue
			}
			detail = rel.Field + " missing"
		case !rel.Required && r.table.IsSentinel(rel.Field, v):
			continue
		default:
			if _, ok := res.Resolve(rel.Target, v); ok {
				continue
			}
			detail = fmt.Sprintf("%s %q not found in %s", rel.Field, v, rel.Target)
		}

		out.Flag(rel.Code, detail)
		switch rel.Action {
		case policy.OrphanNullify:
			out.Unset(rel.Field)
		case policy.OrphanDelete:
			out.DeleteRecord()
		}
	}
}
