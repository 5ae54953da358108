// Package policy declares which repairs apply to which collection.
//
// A Table replaces the per-collection cleanup scripts: each entry names the
// rule families enabled for a collection, how missing scope fields are
// inferred from parent records, which foreign keys must resolve and what to do
// when they do not, and which fields fall back to a sentinel value. The
// built-in table is Default; a YAML file can override parts of it (see Load).
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/fundhub/internal/domain/models"
)

// Family names a group of related rules.
type Family string

const (
	FamilyBlobScrub     Family = "blob-scrub"
	FamilyNormalize     Family = "normalize"
	FamilyCurrency      Family = "currency"
	FamilyDerive        Family = "derive"
	FamilyDefaultFill   Family = "default-fill"
	FamilyOrphan        Family = "orphan"
	FamilyDerivedEntity Family = "derived-entity"
	FamilyAggregate     Family = "aggregate"
)

// Families lists every family in evaluation order.
var Families = []Family{
	FamilyBlobScrub, FamilyNormalize, FamilyCurrency, FamilyDerive,
	FamilyDefaultFill, FamilyOrphan, FamilyDerivedEntity, FamilyAggregate,
}

func validFamily(f Family) bool {
	for _, k := range Families {
		if k == f {
			return true
		}
	}
	return false
}

// OrphanAction says what happens to a record whose foreign key does not resolve.
type OrphanAction string

const (
	OrphanNullify OrphanAction = "nullify" // remove the field (soft orphan)
	OrphanDelete  OrphanAction = "delete"  // remove the record (hard orphan)
	OrphanFlag    OrphanAction = "flag"    // report only
)

// Source is one parent an inferable field can come from: follow the
// record's Via field into Collection and read Field there.
type Source struct {
	Via        string `yaml:"via"`
	Collection string `yaml:"collection"`
	Field      string `yaml:"field"`
}

// Derivation infers Field from its parents. OverwriteMismatch lets a unique
// parent value replace a present but different value.
type Derivation struct {
	Field             string   `yaml:"field"`
	Sources           []Source `yaml:"sources"`
	OverwriteMismatch bool     `yaml:"overwrite_mismatch"`
}

// Relation is a foreign key that must resolve in Target.
type Relation struct {
	Field    string       `yaml:"field"`
	Target   string       `yaml:"target"`
	Action   OrphanAction `yaml:"action"`
	Required bool         `yaml:"required"`
	Code     string       `yaml:"code"`
}

// Collection is the policy for one collection.
type Collection struct {
	Name        string       `yaml:"name"`
	Families    []Family     `yaml:"families"`
	Derive      []Derivation `yaml:"derive"`
	Defaults    []string     `yaml:"defaults"`
	Relations   []Relation   `yaml:"relations"`
	EmailFields []string     `yaml:"email_fields"`
	NameFields  []string     `yaml:"name_fields"`
	LowerFields []string     `yaml:"lower_fields"`
	RoleField   string       `yaml:"role_field"`
}

// Has reports whether family f is enabled for the collection.
func (c Collection) Has(f Family) bool {
	for _, k := range c.Families {
		if k == f {
			return true
		}
	}
	return false
}

// Sentinels are the placeholder values written when nothing better can be
// inferred.
type Sentinels struct {
	OrgID      string `yaml:"org_id"`
	TeamID     string `yaml:"team_id"`
	CampaignID string `yaml:"campaign_id"`
}

// Table is the full reconciliation policy. Collections are evaluated in
// slice order, so parents must come before the records that derive from them.
type Table struct {
	Sentinels   Sentinels    `yaml:"sentinels"`
	Collections []Collection `yaml:"collections"`
}

// Sentinel returns the placeholder for field, if one is configured.
func (t Table) Sentinel(field string) (string, bool) {
	var v string
	switch field {
	case models.FieldOrgID:
		v = t.Sentinels.OrgID
	case models.FieldTeamID:
		v = t.Sentinels.TeamID
	case models.FieldCampaignID:
		v = t.Sentinels.CampaignID
	}
	return v, v != ""
}

// IsSentinel reports whether v is the configured placeholder for field.
func (t Table) IsSentinel(field, v string) bool {
	s, ok := t.Sentinel(field)
	return ok && s == v
}

// Collection returns the policy for name.
func (t Table) Collection(name string) (Collection, bool) {
	for _, c := range t.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// Names returns the collection names in evaluation order.
func (t Table) Names() []string {
	out := make([]string, 0, len(t.Collections))
	for _, c := range t.Collections {
		out = append(out, c.Name)
	}
	return out
}

// SetOrphanAction changes the action for one relation.
func (t *Table) SetOrphanAction(collection, field string, action OrphanAction) bool {
	for i := range t.Collections {
		if t.Collections[i].Name != collection {
			continue
		}
		for j := range t.Collections[i].Relations {
			if t.Collections[i].Relations[j].Field == field {
				t.Collections[i].Relations[j].Action = action
				return true
			}
		}
	}
	return false
}

// DisableFamily removes f from every collection.
func (t *Table) DisableFamily(f Family) {
	for i := range t.Collections {
		kept := t.Collections[i].Families[:0:0]
		for _, k := range t.Collections[i].Families {
			if k != f {
				kept = append(kept, k)
			}
		}
		t.Collections[i].Families = kept
	}
}

// Validate checks the table for mistakes that would make a run misbehave.
func (t Table) Validate() error {
	var problems []string
	seen := make(map[string]int)
	for i, c := range t.Collections {
		if c.Name == "" {
			problems = append(problems, fmt.Sprintf("collection %d: missing name", i))
			continue
		}
		if _, dup := seen[c.Name]; dup {
			problems = append(problems, c.Name+": listed twice")
		}
		seen[c.Name] = i
		for _, f := range c.Families {
			if !validFamily(f) {
				problems = append(problems, fmt.Sprintf("%s: unknown family %q", c.Name, f))
			}
		}
		for _, r := range c.Relations {
			switch r.Action {
			case OrphanNullify, OrphanDelete, OrphanFlag:
			default:
				problems = append(problems, fmt.Sprintf("%s.%s: unknown orphan action %q", c.Name, r.Field, r.Action))
			}
			if r.Field == "" || r.Target == "" || r.Code == "" {
				problems = append(problems, fmt.Sprintf("%s: relation needs field, target, and code", c.Name))
			}
			if r.Required && r.Action == OrphanNullify {
				problems = append(problems, fmt.Sprintf("%s.%s: a required key cannot be nullified", c.Name, r.Field))
			}
		}
		for _, d := range c.Derive {
			if d.Field == "" || len(d.Sources) == 0 {
				problems = append(problems, fmt.Sprintf("%s: derivation needs a field and sources", c.Name))
			}
		}
	}
	// Parents must be evaluated before the collections deriving from them.
	for _, c := range t.Collections {
		for _, d := range c.Derive {
			for _, s := range d.Sources {
				if pi, ok := seen[s.Collection]; ok && s.Collection != c.Name && pi > seen[c.Name] {
					problems = append(problems, fmt.Sprintf("%s.%s: parent %s is evaluated later", c.Name, d.Field, s.Collection))
				}
			}
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid policy: " + strings.Join(problems, "; "))
	}
	return nil
}
