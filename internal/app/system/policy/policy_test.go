package policy

import (
	"testing"

	"github.com/dalemusser/fundhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_ParentsBeforeChildren(t *testing.T) {
	names := Default().Names()
	pos := make(map[string]int)
	for i, n := range names {
		pos[n] = i
	}
	assert.Less(t, pos[models.Users], pos[models.Coaches])
	assert.Less(t, pos[models.Campaigns], pos[models.Donations])
	assert.Less(t, pos[models.Donations], pos[models.Donors])
	assert.Less(t, pos[models.Athletes], pos[models.CampaignAthletes])
}

func TestSentinel(t *testing.T) {
	tbl := Default()

	v, ok := tbl.Sentinel(models.FieldOrgID)
	assert.True(t, ok)
	assert.Equal(t, "demo-org", v)

	_, ok = tbl.Sentinel(models.FieldEmail)
	assert.False(t, ok)

	assert.True(t, tbl.IsSentinel(models.FieldTeamID, "UNASSIGNED"))
	assert.False(t, tbl.IsSentinel(models.FieldTeamID, "team-1"))
}

func TestParse_Overrides(t *testing.T) {
	yml := []byte(`
sentinels:
  org_id: acme-default
orphans:
  - collection: donations
    field: campaignId
    action: delete
collections:
  - name: teams
    families: [normalize]
`)
	tbl, err := Parse(yml, Default())
	require.NoError(t, err)

	assert.Equal(t, "acme-default", tbl.Sentinels.OrgID)
	assert.Equal(t, "UNASSIGNED", tbl.Sentinels.TeamID, "unset sentinels keep their defaults")

	teams, ok := tbl.Collection(models.Teams)
	require.True(t, ok)
	assert.Equal(t, []Family{FamilyNormalize}, teams.Families)

	donations, _ := tbl.Collection(models.Donations)
	for _, r := range donations.Relations {
		if r.Field == models.FieldCampaignID {
			assert.Equal(t, OrphanDelete, r.Action)
		}
	}

	base, _ := Default().Collection(models.Donations)
	for _, r := range base.Relations {
		if r.Field == models.FieldCampaignID {
			assert.Equal(t, OrphanFlag, r.Action, "Parse must not mutate the base table")
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"unknown relation", "orphans:\n  - collection: donations\n    field: nope\n    action: delete\n"},
		{"bad action", "orphans:\n  - collection: donations\n    field: campaignId\n    action: explode\n"},
		{"unknown family", "collections:\n  - name: teams\n    families: [teleport]\n"},
		{"required nullify", "collections:\n  - name: links\n    families: [orphan]\n    relations:\n      - {field: a, target: b, action: nullify, required: true, code: X}\n"},
		{"malformed yaml", "collections: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml), Default())
			assert.Error(t, err)
		})
	}
}

func TestValidate_ParentOrder(t *testing.T) {
	tbl := Table{Collections: []Collection{
		{Name: "children", Families: []Family{FamilyDerive}, Derive: []Derivation{
			{Field: "orgId", Sources: []Source{{Via: "parentId", Collection: "parents", Field: "orgId"}}},
		}},
		{Name: "parents"},
	}}
	assert.ErrorContains(t, tbl.Validate(), "evaluated later")
}

func TestDisableFamily(t *testing.T) {
	tbl := Default()
	tbl.DisableFamily(FamilyBlobScrub)
	for _, c := range tbl.Collections {
		assert.False(t, c.Has(FamilyBlobScrub), c.Name)
	}
	users, _ := Default().Collection(models.Users)
	assert.True(t, users.Has(FamilyBlobScrub), "Default returns a fresh table")
}
