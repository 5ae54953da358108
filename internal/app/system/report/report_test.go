package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/store/memstore"
	"github.com/dalemusser/fundhub/internal/app/system/batch"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	"github.com/dalemusser/fundhub/internal/app/system/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func samplePlan() *rules.Plan {
	return &rules.Plan{
		Evaluated: map[string]int{"donations": 3, "campaignAthletes": 2},
		Writes: []docstore.Write{
			{Collection: "campaignAthletes", ID: "l1", Op: docstore.OpDelete, Families: []string{"orphan"}},
			{Collection: "donations", ID: "d1", Op: docstore.OpUpdate, Fields: map[string]any{"amount": int64(2500)}, Families: []string{"currency", "default-fill"}},
			{Collection: "publicDonors", ID: "d1", Op: docstore.OpCreate, Fields: map[string]any{"amountCents": int64(2500)}, Families: []string{"derived-entity"}},
		},
		Issues: []rules.Issue{
			{Collection: "campaignAthletes", RecordID: "l1", Code: "LINK_ORPHAN_ATHLETE", Family: policy.FamilyOrphan},
			{Collection: "donations", RecordID: "d1", Code: "DONATION_ORPHAN_CAMPAIGN", Family: policy.FamilyOrphan},
			{Collection: "donations", RecordID: "d2", Code: "DONATION_ORPHAN_CAMPAIGN", Family: policy.FamilyOrphan},
		},
	}
}

func TestAddPlan_Tallies(t *testing.T) {
	r := New("proj", ModeDryRun)
	r.SetCounts(map[string]int{"donations": 3, "campaignAthletes": 2, "publicDonors": 0})
	r.AddPlan(samplePlan())

	assert.Equal(t, Tally{Scanned: 3, Corrected: 1, Flagged: 2}, r.Tallies["donations"][AllFamilies])
	assert.Equal(t, Tally{Scanned: 3, Corrected: 1}, r.Tallies["donations"]["currency"])
	assert.Equal(t, Tally{Scanned: 3, Flagged: 2}, r.Tallies["donations"]["orphan"])
	assert.Equal(t, Tally{Scanned: 2, Deleted: 1, Flagged: 1}, r.Tallies["campaignAthletes"][AllFamilies])
	assert.Equal(t, 1, r.Tallies["publicDonors"]["derived-entity"].Corrected)

	assert.Equal(t, map[string]int{"DONATION_ORPHAN_CAMPAIGN": 2, "LINK_ORPHAN_ATHLETE": 1}, r.Stats)
	assert.Equal(t, []string{"DONATION_ORPHAN_CAMPAIGN", "LINK_ORPHAN_ATHLETE"}, r.Codes())
	assert.Equal(t, []string{"campaignAthletes", "donations", "publicDonors"}, r.Collections())
	assert.NotEmpty(t, r.Meta.RunID)
}

func TestAddCommit_RecordsFailedChunk(t *testing.T) {
	r := New("proj", ModeApply)
	err := &batch.ChunkError{Index: 2, Keys: []string{"donations/d9"}, Err: errors.New("denied")}
	r.AddCommit(batch.Result{Chunks: 2, Committed: 800}, err)
	r.Finish("Reporting", err)

	require.NotNil(t, r.Commit.FailedChunk)
	assert.Equal(t, 2, *r.Commit.FailedChunk)
	assert.Equal(t, []string{"donations/d9"}, r.Commit.FailedKeys)
	assert.Contains(t, r.Meta.Error, "denied")
	assert.False(t, r.Meta.GeneratedAt.IsZero())
}

func TestWriteJSON(t *testing.T) {
	r := New("proj", ModeDryRun)
	r.AddPlan(samplePlan())
	r.Finish("Done", nil)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteJSON(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	meta := got["meta"].(map[string]any)
	assert.Equal(t, "proj", meta["scopeId"])
	assert.Equal(t, "dry-run", meta["mode"])
	assert.Len(t, got["issues"], 3)
	assert.Len(t, got["writes"], 3)

	writes := got["writes"].([]any)
	first := writes[0].(map[string]any)
	assert.Equal(t, "delete", first["op"])
}

func TestSave_StoresSummary(t *testing.T) {
	st := memstore.New()
	r := New("proj", ModeApply)
	p := samplePlan()
	for i := 0; i < MaxStoredIssues+5; i++ {
		p.Issues = append(p.Issues, rules.Issue{Collection: "users", RecordID: "u", Code: "INVALID_EMAIL"})
	}
	r.AddPlan(p)
	r.Finish("Done", nil)

	require.NoError(t, r.Save(context.Background(), st, zap.NewNop()))

	doc, ok := st.Snapshot("reconcileReports", r.Meta.RunID)
	require.True(t, ok)
	assert.Equal(t, true, doc["issuesTruncated"])
	assert.Len(t, doc["issues"], MaxStoredIssues)
	assert.NotContains(t, doc, "writes")
	assert.Equal(t, int64(3), doc["writeCount"])
}

func TestWriteTextfile(t *testing.T) {
	r := New("proj", ModeApply)
	r.SetCounts(map[string]int{"donations": 3})
	r.AddPlan(samplePlan())
	r.Finish("Done", nil)

	path := filepath.Join(t.TempDir(), "reconcile.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `fundhub_reconcile_issues{code="DONATION_ORPHAN_CAMPAIGN"} 2`)
	assert.Contains(t, out, `fundhub_reconcile_records{collection="donations",family="all",outcome="corrected"} 1`)
	assert.Contains(t, out, `fundhub_reconcile_documents{collection="donations"} 3`)
	assert.Contains(t, out, `fundhub_reconcile_last_run_success{mode="apply"} 1`)
}

func TestLog_AlwaysSummarizes(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := New("proj", ModeDryRun)
	r.AddPlan(samplePlan())
	r.Finish("Done", nil)

	r.Log(zap.New(core))

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	joined := strings.Join(msgs, "|")
	assert.Contains(t, joined, "collection summary")
	assert.Contains(t, joined, "issue summary")
	assert.Contains(t, joined, "reconcile finished")
}
