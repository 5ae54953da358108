package policy

import m "github.com/dalemusser/fundhub/internal/domain/models"

// Issue codes for orphaned foreign keys.
const (
	CodeUserOrphanAthlete         = "USER_ORPHAN_ATHLETE"
	CodeCampaignOrphanTeam        = "CAMPAIGN_ORPHAN_TEAM"
	CodeAthleteOrphanUser         = "ATHLETE_ORPHAN_USER"
	CodeAthleteOrphanTeam         = "ATHLETE_ORPHAN_TEAM"
	CodeLinkOrphanAthlete         = "LINK_ORPHAN_ATHLETE"
	CodeLinkOrphanCampaign        = "LINK_ORPHAN_CAMPAIGN"
	CodeDonationOrphanCampaign    = "DONATION_ORPHAN_CAMPAIGN"
	CodeDonationOrphanAthlete     = "DONATION_ORPHAN_ATHLETE"
	CodeDonationOrphanDonor       = "DONATION_ORPHAN_DONOR"
	CodeDonorOrphanUser           = "DONOR_ORPHAN_USER"
	CodePublicDonorOrphanCampaign = "PUBLIC_DONOR_ORPHAN_CAMPAIGN"
)

// Default is the policy the donation app's cleanup scripts applied, made
// consistent: one sentinel per field, donor-role users flagged rather than
// deleted, and orphan donations flagged unless deletion is requested.
func Default() Table {
	via := func(fk, coll, field string) Source {
		return Source{Via: fk, Collection: coll, Field: field}
	}
	return Table{
		Sentinels: Sentinels{
			OrgID:      "demo-org",
			TeamID:     "UNASSIGNED",
			CampaignID: "unknown-campaign",
		},
		Collections: []Collection{
			{
				Name:       m.Organizations,
				Families:   []Family{FamilyBlobScrub, FamilyNormalize},
				NameFields: []string{m.FieldName},
			},
			{
				Name:       m.Teams,
				Families:   []Family{FamilyBlobScrub, FamilyNormalize, FamilyDefaultFill},
				Defaults:   []string{m.FieldOrgID},
				NameFields: []string{m.FieldName},
			},
			{
				Name:     m.Users,
				Families: []Family{FamilyBlobScrub, FamilyNormalize, FamilyDerive, FamilyDefaultFill, FamilyOrphan, FamilyDerivedEntity},
				Derive: []Derivation{
					{Field: m.FieldOrgID, Sources: []Source{via(m.FieldTeamID, m.Teams, m.FieldOrgID)}, OverwriteMismatch: true},
				},
				Defaults: []string{m.FieldOrgID},
				Relations: []Relation{
					{Field: m.FieldAthleteID, Target: m.Athletes, Action: OrphanNullify, Code: CodeUserOrphanAthlete},
				},
				EmailFields: []string{m.FieldEmail},
				NameFields:  []string{m.FieldDisplayName},
				RoleField:   m.FieldRole,
			},
			{
				Name:     m.Campaigns,
				Families: []Family{FamilyBlobScrub, FamilyNormalize, FamilyDerive, FamilyDefaultFill, FamilyOrphan},
				Derive: []Derivation{
					{Field: m.FieldOrgID, Sources: []Source{via(m.FieldTeamID, m.Teams, m.FieldOrgID)}, OverwriteMismatch: true},
				},
				Defaults: []string{m.FieldOrgID},
				Relations: []Relation{
					{Field: m.FieldTeamID, Target: m.Teams, Action: OrphanFlag, Code: CodeCampaignOrphanTeam},
				},
				NameFields: []string{m.FieldName},
			},
			{
				Name:     m.Athletes,
				Families: []Family{FamilyBlobScrub, FamilyNormalize, FamilyDerive, FamilyDefaultFill, FamilyOrphan, FamilyAggregate},
				Derive: []Derivation{
					{Field: m.FieldOrgID, Sources: []Source{
						via(m.FieldUserID, m.Users, m.FieldOrgID),
						via(m.FieldTeamID, m.Teams, m.FieldOrgID),
					}, OverwriteMismatch: true},
					{Field: m.FieldTeamID, Sources: []Source{via(m.FieldUserID, m.Users, m.FieldTeamID)}},
				},
				Defaults: []string{m.FieldOrgID, m.FieldTeamID},
				Relations: []Relation{
					{Field: m.FieldUserID, Target: m.Users, Action: OrphanFlag, Code: CodeAthleteOrphanUser},
					{Field: m.FieldTeamID, Target: m.Teams, Action: OrphanFlag, Code: CodeAthleteOrphanTeam},
				},
				NameFields: []string{m.FieldName},
			},
			{
				Name:        m.Coaches,
				Families:    []Family{FamilyBlobScrub, FamilyNormalize, FamilyDerivedEntity},
				EmailFields: []string{m.FieldEmail},
				NameFields:  []string{m.FieldDisplayName},
			},
			{
				Name:     m.CampaignAthletes,
				Families: []Family{FamilyNormalize, FamilyDerive, FamilyOrphan},
				Derive: []Derivation{
					{Field: m.FieldOrgID, Sources: []Source{
						via(m.FieldCampaignID, m.Campaigns, m.FieldOrgID),
						via(m.FieldAthleteID, m.Athletes, m.FieldOrgID),
					}, OverwriteMismatch: true},
					{Field: m.FieldUserID, Sources: []Source{via(m.FieldAthleteID, m.Athletes, m.FieldUserID)}},
				},
				Relations: []Relation{
					{Field: m.FieldAthleteID, Target: m.Athletes, Action: OrphanDelete, Required: true, Code: CodeLinkOrphanAthlete},
					{Field: m.FieldCampaignID, Target: m.Campaigns, Action: OrphanDelete, Required: true, Code: CodeLinkOrphanCampaign},
				},
			},
			{
				Name:     m.Donations,
				Families: []Family{FamilyBlobScrub, FamilyNormalize, FamilyCurrency, FamilyDerive, FamilyDefaultFill, FamilyOrphan, FamilyDerivedEntity},
				Derive: []Derivation{
					{Field: m.FieldOrgID, Sources: []Source{
						via(m.FieldCampaignID, m.Campaigns, m.FieldOrgID),
						via(m.FieldAthleteID, m.Athletes, m.FieldOrgID),
					}, OverwriteMismatch: true},
					{Field: m.FieldTeamID, Sources: []Source{via(m.FieldAthleteID, m.Athletes, m.FieldTeamID)}},
				},
				Defaults: []string{m.FieldOrgID, m.FieldCampaignID},
				Relations: []Relation{
					{Field: m.FieldCampaignID, Target: m.Campaigns, Action: OrphanFlag, Code: CodeDonationOrphanCampaign},
					{Field: m.FieldAthleteID, Target: m.Athletes, Action: OrphanNullify, Code: CodeDonationOrphanAthlete},
					{Field: m.FieldDonorID, Target: m.Donors, Action: OrphanFlag, Code: CodeDonationOrphanDonor},
				},
				EmailFields: []string{m.FieldDonorEmail},
				NameFields:  []string{m.FieldDonorName},
				LowerFields: []string{m.FieldStatus},
			},
			{
				Name:     m.Donors,
				Families: []Family{FamilyBlobScrub, FamilyNormalize, FamilyDerive, FamilyDefaultFill, FamilyOrphan, FamilyAggregate},
				Derive: []Derivation{
					{Field: m.FieldOrgID, Sources: []Source{via(m.FieldUserID, m.Users, m.FieldOrgID)}, OverwriteMismatch: true},
				},
				Defaults: []string{m.FieldOrgID},
				Relations: []Relation{
					{Field: m.FieldUserID, Target: m.Users, Action: OrphanFlag, Code: CodeDonorOrphanUser},
				},
				EmailFields: []string{m.FieldEmail},
				NameFields:  []string{m.FieldDisplayName},
			},
			{
				Name:     m.PublicDonors,
				Families: []Family{FamilyOrphan},
				Relations: []Relation{
					{Field: m.FieldCampaignID, Target: m.Campaigns, Action: OrphanFlag, Code: CodePublicDonorOrphanCampaign},
				},
			},
		},
	}
}
