package models

import (
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
)

// Coach is rebuilt from a users document whose role is coach. The document
// id equals the user's uid.
type Coach struct {
	UID         string `firestore:"uid" bson:"uid"`
	UserID      string `firestore:"userId" bson:"userId"`
	OrgID       string `firestore:"orgId" bson:"orgId"`
	TeamID      string `firestore:"teamId" bson:"teamId"`
	Role        string `firestore:"role" bson:"role"`
	DisplayName string `firestore:"displayName,omitempty" bson:"displayName,omitempty"`
	Email       string `firestore:"email,omitempty" bson:"email,omitempty"`
}

// CoachFromUser computes the coach record for a coach user. Missing orgId or
// teamId stay empty; they are not guessed here.
func CoachFromUser(uid string, user map[string]any) Coach {
	return Coach{
		UID:         uid,
		UserID:      uid,
		OrgID:       docstore.FieldString(user, FieldOrgID),
		TeamID:      docstore.FieldString(user, FieldTeamID),
		Role:        RoleCoach,
		DisplayName: docstore.FieldString(user, FieldDisplayName),
		Email:       docstore.FieldString(user, FieldEmail),
	}
}

// CoachOptionalFields are copied from the user only when set. A coach whose
// user no longer has one of them must not keep it either.
var CoachOptionalFields = []string{FieldOrgID, FieldTeamID, FieldDisplayName, FieldEmail}

// Fields renders the coach as store fields. Empty optional values are left out
// so a rebuild never writes blanks.
func (c Coach) Fields() map[string]any {
	f := map[string]any{
		FieldUID:    c.UID,
		FieldUserID: c.UserID,
		FieldRole:   c.Role,
	}
	if c.OrgID != "" {
		f[FieldOrgID] = c.OrgID
	}
	if c.TeamID != "" {
		f[FieldTeamID] = c.TeamID
	}
	if c.DisplayName != "" {
		f[FieldDisplayName] = c.DisplayName
	}
	if c.Email != "" {
		f[FieldEmail] = c.Email
	}
	return f
}

// PublicDonor is the public, per-campaign view of one paid donation, keyed by
// the donation id. It is append-only.
type PublicDonor struct {
	CampaignID  string    `firestore:"campaignId" bson:"campaignId"`
	OrgID       string    `firestore:"orgId,omitempty" bson:"orgId,omitempty"`
	DisplayName string    `firestore:"displayName" bson:"displayName"`
	AmountCents int64     `firestore:"amountCents" bson:"amountCents"`
	CreatedAt   time.Time `firestore:"createdAt" bson:"createdAt"`
	AthleteID   string    `firestore:"athleteId,omitempty" bson:"athleteId,omitempty"`
}

// AnonymousName is shown for donors who asked not to be named.
const AnonymousName = "Anonymous"

// PublicDonorFromDonation builds the public view of a donation.
func PublicDonorFromDonation(donation map[string]any) PublicDonor {
	name := docstore.FieldString(donation, FieldDonorName)
	if anon, _ := donation[FieldIsAnonymous].(bool); anon || name == "" {
		name = AnonymousName
	}
	var cents int64
	if n, ok := docstore.Number(donation[FieldAmount]); ok {
		cents = int64(n)
	}
	created, _ := docstore.Time(donation[FieldCreatedAt])
	return PublicDonor{
		CampaignID:  docstore.FieldString(donation, FieldCampaignID),
		OrgID:       docstore.FieldString(donation, FieldOrgID),
		DisplayName: name,
		AmountCents: cents,
		CreatedAt:   created,
		AthleteID:   docstore.FieldString(donation, FieldAthleteID),
	}
}

// Fields renders the public donor as store fields.
func (p PublicDonor) Fields() map[string]any {
	f := map[string]any{
		FieldCampaignID:  p.CampaignID,
		FieldDisplayName: p.DisplayName,
		FieldAmountCents: p.AmountCents,
	}
	if !p.CreatedAt.IsZero() {
		f[FieldCreatedAt] = p.CreatedAt
	}
	if p.OrgID != "" {
		f[FieldOrgID] = p.OrgID
	}
	if p.AthleteID != "" {
		f[FieldAthleteID] = p.AthleteID
	}
	return f
}
