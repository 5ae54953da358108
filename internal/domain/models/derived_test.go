package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoachFromUser(t *testing.T) {
	user := map[string]any{
		FieldOrgID:       " org-1 ",
		FieldTeamID:      "team-9",
		FieldDisplayName: "Pat Coach",
		FieldRole:        "coach",
	}

	c := CoachFromUser("u1", user)

	assert.Equal(t, map[string]any{
		FieldUID:         "u1",
		FieldUserID:      "u1",
		FieldRole:        RoleCoach,
		FieldOrgID:       "org-1",
		FieldTeamID:      "team-9",
		FieldDisplayName: "Pat Coach",
	}, c.Fields())
}

func TestPublicDonorFromDonation(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("named donor", func(t *testing.T) {
		pd := PublicDonorFromDonation(map[string]any{
			FieldCampaignID: "c1",
			FieldDonorName:  "Alex",
			FieldAmount:     int64(2500),
			FieldCreatedAt:  created,
			FieldAthleteID:  "a1",
		})
		assert.Equal(t, "Alex", pd.DisplayName)
		assert.Equal(t, int64(2500), pd.AmountCents)
		assert.Equal(t, map[string]any{
			FieldCampaignID:  "c1",
			FieldDisplayName: "Alex",
			FieldAmountCents: int64(2500),
			FieldCreatedAt:   created,
			FieldAthleteID:   "a1",
		}, pd.Fields())
	})

	t.Run("anonymous flag hides name", func(t *testing.T) {
		pd := PublicDonorFromDonation(map[string]any{
			FieldDonorName:   "Alex",
			FieldIsAnonymous: true,
		})
		assert.Equal(t, AnonymousName, pd.DisplayName)
	})

	t.Run("blank name", func(t *testing.T) {
		pd := PublicDonorFromDonation(map[string]any{FieldDonorName: "  "})
		assert.Equal(t, AnonymousName, pd.DisplayName)
	})
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleCoach, RoleAthlete, RoleDonor} {
		assert.True(t, ValidRole(r), r)
	}
	assert.False(t, ValidRole("leader"))
	assert.False(t, ValidRole(""))
}
