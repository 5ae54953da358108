package xref

import (
	"context"
	"testing"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/store/memstore"
	"github.com/dalemusser/fundhub/internal/app/system/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seeded() *memstore.Store {
	st := memstore.New()
	st.Put("campaigns", "c1", map[string]any{"orgId": "o1", "name": "Spring Drive"})
	st.Put("campaigns", "c2", map[string]any{"orgId": "o2"})
	st.Put("athletes", "a1", map[string]any{"orgId": "o1", "teamId": "t1"})
	st.Put("donations", "d1", map[string]any{"donorId": "dn1", "amount": 500})
	st.Put("donations", "d2", map[string]any{"donorId": "dn1", "amount": 700})
	st.Put("donations", "d3", map[string]any{"donorId": "dn2", "amount": 100})
	return st
}

func load(t *testing.T, collections []string, limit int) *Resolver {
	t.Helper()
	sc := scanner.New(seeded(), zap.NewNop())
	r, err := Load(context.Background(), sc, collections, limit, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestLoad_ResolvesAcrossCollections(t *testing.T) {
	r := load(t, []string{"campaigns", "athletes", "donations", "teams"}, 2)

	c, ok := r.Resolve("campaigns", "c1")
	require.True(t, ok)
	assert.Equal(t, "o1", c["orgId"])

	_, ok = r.Resolve("campaigns", "missing")
	assert.False(t, ok)

	_, ok = r.Resolve("campaigns", "")
	assert.False(t, ok)

	assert.Equal(t, 0, r.Len("teams"))
	assert.Equal(t, []string{"d1", "d2", "d3"}, r.IDs("donations"))
}

func TestWhere(t *testing.T) {
	r := load(t, []string{"donations"}, 0)

	got := r.Where("donations", "donorId", "dn1")
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "d2", got[1].ID)
	assert.Empty(t, r.Where("donations", "donorId", "nobody"))
}

func TestApply_OverlaysPlannedWrites(t *testing.T) {
	r := FromDocuments(map[string][]docstore.Document{
		"athletes": {{ID: "a1", Fields: map[string]any{"teamId": "t1"}}},
		"campaignAthletes": {
			{ID: "l1", Fields: map[string]any{"athleteId": "a1"}},
		},
	})
	before, _ := r.Resolve("athletes", "a1")
	byAthlete := r.Where("campaignAthletes", "athleteId", "a1")
	require.Len(t, byAthlete, 1)

	r.Apply([]docstore.Write{
		{Collection: "athletes", ID: "a1", Op: docstore.OpUpdate, Fields: map[string]any{"orgId": "o1", "teamId": docstore.Delete}},
		{Collection: "athletes", ID: "ghost", Op: docstore.OpUpdate, Fields: map[string]any{"orgId": "o1"}},
		{Collection: "coaches", ID: "u9", Op: docstore.OpUpsert, Fields: map[string]any{"uid": "u9"}},
		{Collection: "campaignAthletes", ID: "l1", Op: docstore.OpDelete},
	})

	after, ok := r.Resolve("athletes", "a1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"orgId": "o1"}, after)
	assert.Equal(t, map[string]any{"teamId": "t1"}, before, "previously returned maps stay unchanged")

	_, ok = r.Resolve("athletes", "ghost")
	assert.False(t, ok, "update of a missing document is not an upsert")

	_, ok = r.Resolve("coaches", "u9")
	assert.True(t, ok)

	assert.Empty(t, r.Where("campaignAthletes", "athleteId", "a1"), "index rebuilt after apply")
}
