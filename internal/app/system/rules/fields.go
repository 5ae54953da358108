package rules

import (
	"fmt"
	"strings"

	"github.com/dalemusser/fundhub/internal/app/system/normalize"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	"github.com/dalemusser/fundhub/internal/domain/models"
)

// normalizeFields trims strings and canonicalizes emails, display names,
// lower-cased fields, and roles.
type normalizeFields struct {
	coll        policy.Collection
	stripMarkup bool
}

func (normalizeFields) Family() policy.Family { return policy.FamilyNormalize }

func (r normalizeFields) Evaluate(rec Record, _ Lookup, out *Outcome) {
	view := out.View()
	for _, field := range sortedKeys(view) {
		if s, ok := view[field].(string); ok {
			if t := strings.TrimSpace(s); t != s {
				out.Set(field, t)
			}
		}
	}

	for _, field := range r.coll.EmailFields {
		s, ok := view[field].(string)
		if !ok || s == "" {
			continue
		}
		e := normalize.Email(s)
		out.Set(field, e)
		if !normalize.ValidEmail(e) {
			out.Flag(CodeInvalidEmail, fmt.Sprintf("%s %q", field, e))
		}
	}

	if r.stripMarkup {
		for _, field := range r.coll.NameFields {
			if s, ok := view[field].(string); ok {
				out.Set(field, normalize.StripMarkup(s))
			}
		}
	}

	for _, field := range r.coll.LowerFields {
		if s, ok := view[field].(string); ok {
			out.Set(field, normalize.Status(s))
		}
	}

	if r.coll.RoleField != "" {
		if s, ok := view[r.coll.RoleField].(string); ok {
			role := normalize.Role(s)
			out.Set(r.coll.RoleField, role)
			switch {
			case !models.ValidRole(role):
				out.Flag(CodeInvalidRole, fmt.Sprintf("%q", role))
			case role == models.RoleDonor:
				out.Flag(CodeDonorRoleUser, "")
			}
		}
	}
}
