// Package models names the collections, fields, and roles of the
// donation app's document store, and the records the reconciler derives.
package models

// Collection names as stored by the web app.
const (
	Organizations    = "organizations"
	Teams            = "teams"
	Users            = "users"
	Athletes         = "athletes"
	Coaches          = "coaches"
	Donors           = "donors"
	Campaigns        = "campaigns"
	Donations        = "donations"
	CampaignAthletes = "campaignAthletes"
	PublicDonors     = "publicDonors"
	ReconcileReports = "reconcileReports"
)

// All lists every collection the reconciler reads.
var All = []string{
	Organizations, Teams, Users, Athletes, Coaches, Donors,
	Campaigns, Donations, CampaignAthletes, PublicDonors,
}

// Field names.
const (
	FieldOrgID              = "orgId"
	FieldTeamID             = "teamId"
	FieldTeamIDs            = "teamIds"
	FieldUID                = "uid"
	FieldUserID             = "userId"
	FieldAthleteID          = "athleteId"
	FieldCampaignID         = "campaignId"
	FieldDonorID            = "donorId"
	FieldRole               = "role"
	FieldDisplayName        = "displayName"
	FieldName               = "name"
	FieldEmail              = "email"
	FieldDonorEmail         = "donorEmail"
	FieldDonorName          = "donorName"
	FieldAmount             = "amount"
	FieldAmountCents        = "amountCents"
	FieldLegacyAmount       = "legacyAmount"
	FieldLegacyCurrencyUnit = "legacyCurrencyUnit"
	FieldStatus             = "status"
	FieldCreatedAt          = "createdAt"
	FieldTotalDonations     = "totalDonations"
	FieldLastDonationAt     = "lastDonationAt"
	FieldTotalRaised        = "totalRaised"
	FieldIsAnonymous        = "isAnonymous"
	FieldIsPublic           = "isPublic"
)

// Roles a user can hold.
const (
	RoleAdmin   = "admin"
	RoleCoach   = "coach"
	RoleAthlete = "athlete"
	RoleDonor   = "donor"
)

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleAthlete, RoleDonor:
		return true
	}
	return false
}

// StatusPaid marks a settled donation.
const StatusPaid = "paid"

// UnitDollars tags an amount converted from major currency units.
const UnitDollars = "dollars"
