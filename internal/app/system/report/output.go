package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/timeouts"
	"github.com/dalemusser/fundhub/internal/domain/models"
	"go.uber.org/zap"
)

// MaxStoredIssues caps the issue list saved to the store so the report
// document stays under the store's document size limit.
const MaxStoredIssues = 1000

// Log writes the run summary. It is always emitted, whatever else is
// requested.
func (r *Report) Log(logger *zap.Logger) {
	for _, coll := range r.Collections() {
		t := r.Tallies[coll][AllFamilies]
		logger.Info("collection summary",
			zap.String("collection", coll),
			zap.Int("documents", r.Counts[coll]),
			zap.Int("scanned", t.Scanned),
			zap.Int("corrected", t.Corrected),
			zap.Int("deleted", t.Deleted),
			zap.Int("flagged", t.Flagged),
		)
	}
	for _, code := range r.Codes() {
		logger.Info("issue summary", zap.String("code", code), zap.Int("count", r.Stats[code]))
	}

	fields := []zap.Field{
		zap.String("scope_id", r.Meta.ScopeID),
		zap.String("run_id", r.Meta.RunID),
		zap.String("mode", r.Meta.Mode),
		zap.String("phase", r.Meta.Phase),
		zap.Int("writes", len(r.Writes)),
		zap.Int("issues", len(r.Issues)),
	}
	if r.Commit != nil {
		fields = append(fields, zap.Int("committed", r.Commit.Committed), zap.Int("created", r.Commit.Created))
	}
	if r.Meta.Error != "" {
		logger.Error("reconcile finished with error", append(fields, zap.String("error", r.Meta.Error))...)
		return
	}
	logger.Info("reconcile finished", fields...)
}

// WriteJSON writes the full report to path. The file is replaced atomically.
func (r *Report) WriteJSON(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.json")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// StoreFields renders the report as a store document. Planned writes are
// left out and issues are capped at MaxStoredIssues.
func (r *Report) StoreFields() (map[string]any, error) {
	doc := *r
	doc.Writes = nil
	truncated := false
	if len(doc.Issues) > MaxStoredIssues {
		doc.Issues = doc.Issues[:MaxStoredIssues]
		truncated = true
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	delete(fields, "writes")
	fields["issuesTruncated"] = truncated
	fields["writeCount"] = len(r.Writes)
	return docstore.NormalizeFields(fields), nil
}

// Save stores the report in the reconcileReports collection under its run id.
func (r *Report) Save(ctx context.Context, store docstore.Store, logger *zap.Logger) error {
	fields, err := r.StoreFields()
	if err != nil {
		return err
	}
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), logger, "save report")
	defer cancel()
	if err := store.CreateIfAbsent(ctx, models.ReconcileReports, r.Meta.RunID, fields); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
