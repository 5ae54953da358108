package rules

import (
	"sort"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/normalize"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	m "github.com/dalemusser/fundhub/internal/domain/models"
)

// coachRebuild recomputes coaches/{uid} from every coach user.
type coachRebuild struct{}

func (coachRebuild) Family() policy.Family { return policy.FamilyDerivedEntity }

func (coachRebuild) Evaluate(rec Record, res Lookup, out *Outcome) {
	view := out.View()
	if out.Deleted() || docstore.FieldString(view, m.FieldRole) != m.RoleCoach {
		return
	}
	want := m.CoachFromUser(rec.ID, view).Fields()
	have, _ := res.Resolve(m.Coaches, rec.ID)

	fields := make(map[string]any)
	before := make(map[string]any)
	for k, v := range want {
		prev, ok := have[k]
		if ok && docstore.Equal(prev, v) {
			continue
		}
		fields[k] = v
		if ok {
			before[k] = prev
		}
	}
	for _, k := range m.CoachOptionalFields {
		if _, set := want[k]; set {
			continue
		}
		if prev, ok := have[k]; ok && prev != nil {
			fields[k] = docstore.Delete
			before[k] = prev
		}
	}
	if len(fields) == 0 {
		return
	}
	out.Emit(docstore.Write{
		Collection: m.Coaches,
		ID:         rec.ID,
		Op:         docstore.OpUpsert,
		Fields:     fields,
		Before:     before,
	})
}

// coachCheck repairs a coach's uid from its document id and flags coaches
// with no coach user behind them.
type coachCheck struct{}

func (coachCheck) Family() policy.Family { return policy.FamilyDerivedEntity }

func (coachCheck) Evaluate(rec Record, res Lookup, out *Outcome) {
	uid := docstore.FieldString(out.View(), m.FieldUID)
	if uid == "" {
		uid = rec.ID
		out.Set(m.FieldUID, uid)
	}
	user, ok := res.Resolve(m.Users, uid)
	if !ok {
		out.Flag(CodeCoachWithoutUser, "no user "+uid)
		return
	}
	if role := normalize.Role(docstore.FieldString(user, m.FieldRole)); role != m.RoleCoach {
		out.Flag(CodeCoachWithoutUser, "user "+uid+" has role "+role)
	}
}

// publicDonor creates the public listing for a paid donation. Listings are
// append-only: an existing one is never rewritten.
type publicDonor struct {
	table policy.Table
}

func (publicDonor) Family() policy.Family { return policy.FamilyDerivedEntity }

func (r publicDonor) Evaluate(rec Record, res Lookup, out *Outcome) {
	view := out.View()
	if out.Deleted() || normalize.Status(docstore.FieldString(view, m.FieldStatus)) != m.StatusPaid {
		return
	}
	campaignID := docstore.FieldString(view, m.FieldCampaignID)
	if campaignID == "" || r.table.IsSentinel(m.FieldCampaignID, campaignID) {
		return
	}
	if _, ok := res.Resolve(m.Campaigns, campaignID); !ok {
		return
	}
	if _, exists := res.Resolve(m.PublicDonors, rec.ID); exists {
		return
	}
	out.Emit(docstore.Write{
		Collection: m.PublicDonors,
		ID:         rec.ID,
		Op:         docstore.OpCreate,
		Fields:     m.PublicDonorFromDonation(view).Fields(),
	})
}

// donationTotals sums the counted donations pointing at the record through
// field: donors by donorId, athletes by athleteId.
type donationTotals struct {
	via       string
	totalKey  string
	latestKey string
}

func (donationTotals) Family() policy.Family { return policy.FamilyAggregate }

func (r donationTotals) Evaluate(rec Record, res Lookup, out *Outcome) {
	if out.Deleted() {
		return
	}
	donations := res.Where(m.Donations, r.via, rec.ID)
	sort.Slice(donations, func(i, j int) bool { return donations[i].ID < donations[j].ID })

	var (
		total    float64
		latestAt time.Time
		dated    bool
	)
	for _, d := range donations {
		if !countable(d.Fields) {
			continue
		}
		n, ok := docstore.Number(d.Fields[m.FieldAmount])
		if !ok || n < 0 {
			continue
		}
		total += n
		if t, ok := docstore.Time(d.Fields[m.FieldCreatedAt]); ok && (!dated || t.After(latestAt)) {
			latestAt, dated = t, true
		}
	}

	out.Set(r.totalKey, toInt(total))
	if r.latestKey != "" && dated {
		out.Set(r.latestKey, latestAt)
	}
}

// countable reports whether a donation counts toward totals: settled, or from
// before status was recorded.
func countable(fields map[string]any) bool {
	s, present := fields[m.FieldStatus]
	if !present || s == nil {
		return true
	}
	str, ok := s.(string)
	return ok && normalize.Status(str) == m.StatusPaid
}
