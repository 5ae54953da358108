package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/memstore"
	"github.com/dalemusser/fundhub/internal/app/system/timeouts"
	m "github.com/dalemusser/fundhub/internal/domain/models"
)

// TestContext returns a context bounded by the Long timeout, cancelled when
// the test ends.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	t.Cleanup(cancel)
	return ctx
}

// Fixtures provides helper methods for seeding a memstore with the donation
// app's documents.
type Fixtures struct {
	store *memstore.Store
	t     *testing.T
}

// NewFixtures creates a Fixtures over a fresh store.
func NewFixtures(t *testing.T) *Fixtures {
	t.Helper()
	return &Fixtures{store: memstore.New(), t: t}
}

// Store returns the underlying store for direct access in tests.
func (f *Fixtures) Store() *memstore.Store {
	return f.store
}

// Put stores an arbitrary document.
func (f *Fixtures) Put(collection, id string, fields map[string]any) {
	f.t.Helper()
	if fields == nil {
		fields = map[string]any{}
	}
	f.store.Put(collection, id, fields)
}

// Get returns a stored document, failing the test if it is missing.
func (f *Fixtures) Get(collection, id string) map[string]any {
	f.t.Helper()
	doc, ok := f.store.Snapshot(collection, id)
	if !ok {
		f.t.Fatalf("%s/%s not found", collection, id)
	}
	return doc
}

// Exists reports whether a document is stored.
func (f *Fixtures) Exists(collection, id string) bool {
	_, ok := f.store.Snapshot(collection, id)
	return ok
}

// CreateOrganization stores an organization.
func (f *Fixtures) CreateOrganization(id, name string) {
	f.Put(m.Organizations, id, map[string]any{m.FieldName: name})
}

// CreateTeam stores a team in orgID.
func (f *Fixtures) CreateTeam(id, orgID string) {
	f.Put(m.Teams, id, map[string]any{m.FieldOrgID: orgID, m.FieldName: "Team " + id})
}

// CreateUser stores a user. Empty teamID leaves the field out.
func (f *Fixtures) CreateUser(uid, role, teamID string) {
	fields := map[string]any{
		m.FieldRole:        role,
		m.FieldEmail:       uid + "@example.org",
		m.FieldDisplayName: "User " + uid,
	}
	if teamID != "" {
		fields[m.FieldTeamID] = teamID
	}
	f.Put(m.Users, uid, fields)
}

// CreateCoach stores a user with the coach role.
func (f *Fixtures) CreateCoach(uid, teamID string) {
	f.CreateUser(uid, m.RoleCoach, teamID)
}

// CreateAthlete stores an athlete linked to userID. Empty ids are left out.
func (f *Fixtures) CreateAthlete(id, userID, teamID string) {
	fields := map[string]any{m.FieldName: "Athlete " + id}
	if userID != "" {
		fields[m.FieldUserID] = userID
	}
	if teamID != "" {
		fields[m.FieldTeamID] = teamID
	}
	f.Put(m.Athletes, id, fields)
}

// CreateCampaign stores a campaign for teamID.
func (f *Fixtures) CreateCampaign(id, teamID string) {
	fields := map[string]any{m.FieldName: "Campaign " + id}
	if teamID != "" {
		fields[m.FieldTeamID] = teamID
	}
	f.Put(m.Campaigns, id, fields)
}

// CreateLink stores a campaign-athlete link.
func (f *Fixtures) CreateLink(id, campaignID, athleteID string) {
	f.Put(m.CampaignAthletes, id, map[string]any{
		m.FieldCampaignID: campaignID,
		m.FieldAthleteID:  athleteID,
	})
}

// CreateDonor stores a donor.
func (f *Fixtures) CreateDonor(id, email string) {
	f.Put(m.Donors, id, map[string]any{m.FieldEmail: email})
}

// CreateDonation stores a paid donation. extra fields override the defaults.
func (f *Fixtures) CreateDonation(id, campaignID, donorID string, amount any, extra map[string]any) {
	fields := map[string]any{
		m.FieldAmount:     amount,
		m.FieldStatus:     m.StatusPaid,
		m.FieldDonorName:  "Donor " + donorID,
		m.FieldCreatedAt:  time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		m.FieldCampaignID: campaignID,
	}
	if donorID != "" {
		fields[m.FieldDonorID] = donorID
	}
	for k, v := range extra {
		fields[k] = v
	}
	f.Put(m.Donations, id, fields)
}
