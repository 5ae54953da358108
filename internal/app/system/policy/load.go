package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides is the YAML shape of a policy file. Every section is optional:
//
//	sentinels:
//	  org_id: acme-default
//	orphans:
//	  - collection: donations
//	    field: campaignId
//	    action: delete
//	collections:
//	  - name: teams
//	    families: [normalize]
//
// Sentinels replace the non-empty values given. Orphans change the action of
// existing relations. Collections replace the built-in entry with the same
// name, or are appended when the name is new.
type Overrides struct {
	Sentinels   Sentinels        `yaml:"sentinels"`
	Orphans     []OrphanOverride `yaml:"orphans"`
	Collections []Collection     `yaml:"collections"`
}

// OrphanOverride changes one relation's action.
type OrphanOverride struct {
	Collection string       `yaml:"collection"`
	Field      string       `yaml:"field"`
	Action     OrphanAction `yaml:"action"`
}

// Load reads a policy file and applies it on top of base.
func Load(path string, base Table) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(b, base)
}

// Parse applies YAML overrides on top of base.
func Parse(b []byte, base Table) (Table, error) {
	var o Overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return Table{}, fmt.Errorf("parse policy file: %w", err)
	}
	t := base.clone()

	if o.Sentinels.OrgID != "" {
		t.Sentinels.OrgID = o.Sentinels.OrgID
	}
	if o.Sentinels.TeamID != "" {
		t.Sentinels.TeamID = o.Sentinels.TeamID
	}
	if o.Sentinels.CampaignID != "" {
		t.Sentinels.CampaignID = o.Sentinels.CampaignID
	}

	for _, c := range o.Collections {
		replaced := false
		for i := range t.Collections {
			if t.Collections[i].Name == c.Name {
				t.Collections[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			t.Collections = append(t.Collections, c)
		}
	}

	for _, or := range o.Orphans {
		if !t.SetOrphanAction(or.Collection, or.Field, or.Action) {
			return Table{}, fmt.Errorf("policy file: no relation %s.%s", or.Collection, or.Field)
		}
	}

	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

func (t Table) clone() Table {
	out := Table{Sentinels: t.Sentinels, Collections: make([]Collection, len(t.Collections))}
	for i, c := range t.Collections {
		c.Families = append([]Family(nil), c.Families...)
		c.Derive = append([]Derivation(nil), c.Derive...)
		c.Defaults = append([]string(nil), c.Defaults...)
		c.Relations = append([]Relation(nil), c.Relations...)
		out.Collections[i] = c
	}
	return out
}
