// internal/app/system/reconcile/reconcile.go

// Package reconcile runs one reconciliation pass over a store:
//
//	Scanning -> Resolving -> Evaluating -> (DryRunReport | Committing) -> Reporting -> Done
//
// No phase is entered twice. A failure in any phase skips ahead to
// Reporting, so an interrupted or failed run still reports what it did.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/batch"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	"github.com/dalemusser/fundhub/internal/app/system/report"
	"github.com/dalemusser/fundhub/internal/app/system/rules"
	"github.com/dalemusser/fundhub/internal/app/system/scanner"
	"github.com/dalemusser/fundhub/internal/app/system/xref"
	"github.com/dalemusser/fundhub/internal/domain/models"
	"go.uber.org/zap"
)

// Phase is a state of the run.
type Phase string

const (
	PhaseIdle         Phase = ""
	PhaseScanning     Phase = "Scanning"
	PhaseResolving    Phase = "Resolving"
	PhaseEvaluating   Phase = "Evaluating"
	PhaseDryRunReport Phase = "DryRunReport"
	PhaseCommitting   Phase = "Committing"
	PhaseReporting    Phase = "Reporting"
	PhaseDone         Phase = "Done"
)

var order = []Phase{
	PhaseIdle, PhaseScanning, PhaseResolving, PhaseEvaluating,
	PhaseDryRunReport, PhaseCommitting, PhaseReporting, PhaseDone,
}

// Config is what a run needs beyond its components.
type Config struct {
	ScopeID         string
	DryRun          bool
	Concurrency     int
	ReportPath      string
	ReportToStore   bool
	MetricsTextfile string
}

// Runner executes a single run. It is not reusable.
type Runner struct {
	store  docstore.Store
	table  policy.Table
	engine *rules.Engine
	writer *batch.Writer
	cfg    Config
	log    *zap.Logger

	phase   Phase
	history []Phase
}

// New wires a runner from its parts. The writer's mode must match cfg.DryRun.
func New(store docstore.Store, table policy.Table, engine *rules.Engine, writer *batch.Writer, cfg Config, logger *zap.Logger) (*Runner, error) {
	if writer.DryRun() != cfg.DryRun {
		return nil, fmt.Errorf("reconcile: writer dry-run=%t but run dry-run=%t", writer.DryRun(), cfg.DryRun)
	}
	return &Runner{
		store:  store,
		table:  table,
		engine: engine,
		writer: writer,
		cfg:    cfg,
		log:    logger,
	}, nil
}

// Phase returns the current phase.
func (r *Runner) Phase() Phase { return r.phase }

// History returns every phase entered, in order.
func (r *Runner) History() []Phase { return append([]Phase(nil), r.history...) }

func (r *Runner) enter(p Phase) {
	if slices.Index(order, p) <= slices.Index(order, r.phase) {
		panic(fmt.Sprintf("reconcile: cannot move from %q to %q", r.phase, p))
	}
	r.phase = p
	r.history = append(r.history, p)
	r.log.Info("phase", zap.String("phase", string(p)))
}

// Run executes the pass and returns its report. The report is non-nil even
// when an error is returned.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	mode := report.ModeApply
	if r.cfg.DryRun {
		mode = report.ModeDryRun
	}
	rep := report.New(r.cfg.ScopeID, mode)
	log := r.log.With(zap.String("run_id", rep.Meta.RunID), zap.String("mode", mode))
	r.log = log

	runErr := r.execute(ctx, rep)
	last := r.phase

	r.enter(PhaseReporting)
	rep.Finish(string(last), runErr)
	outErr := r.output(ctx, rep)

	r.enter(PhaseDone)
	return rep, errors.Join(runErr, outErr)
}

func (r *Runner) execute(ctx context.Context, rep *report.Report) error {
	r.enter(PhaseScanning)
	collections := r.collections()
	res, err := xref.Load(ctx, scanner.New(r.store, r.log), collections, r.cfg.Concurrency, r.log)
	if err != nil {
		return err
	}

	r.enter(PhaseResolving)
	counts := make(map[string]int, len(collections))
	for _, name := range collections {
		counts[name] = res.Len(name)
	}
	rep.SetCounts(counts)

	r.enter(PhaseEvaluating)
	plan, err := r.engine.Plan(ctx, res)
	if err != nil {
		return err
	}
	rep.AddPlan(plan)
	r.log.Info("plan ready", zap.Int("writes", len(plan.Writes)), zap.Int("issues", len(plan.Issues)))

	if r.cfg.DryRun {
		r.enter(PhaseDryRunReport)
		_, err := r.writer.Commit(ctx, plan.Writes)
		return err
	}

	r.enter(PhaseCommitting)
	result, err := r.writer.Commit(ctx, plan.Writes)
	rep.AddCommit(result, err)
	return err
}

// collections lists every collection the policy evaluates or references.
func (r *Runner) collections() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, c := range r.table.Collections {
		add(c.Name)
		for _, d := range c.Derive {
			for _, s := range d.Sources {
				add(s.Collection)
			}
		}
		for _, rel := range c.Relations {
			add(rel.Target)
		}
	}
	for _, name := range models.All {
		add(name)
	}
	return out
}

// output emits the report everywhere it was asked to go. Outputs are
// attempted even after a cancelled run.
func (r *Runner) output(ctx context.Context, rep *report.Report) error {
	rep.Log(r.log)

	var errs []error
	if r.cfg.ReportPath != "" {
		if err := rep.WriteJSON(r.cfg.ReportPath); err != nil {
			errs = append(errs, err)
		} else {
			r.log.Info("report written", zap.String("path", r.cfg.ReportPath))
		}
	}
	if r.cfg.ReportToStore {
		if err := rep.Save(context.WithoutCancel(ctx), r.store, r.log); err != nil {
			errs = append(errs, err)
		} else {
			r.log.Info("report saved", zap.String("collection", models.ReconcileReports), zap.String("id", rep.Meta.RunID))
		}
	}
	if r.cfg.MetricsTextfile != "" {
		if err := rep.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
			errs = append(errs, err)
		}
	}
	for _, err := range errs {
		r.log.Error("report output failed", zap.Error(err))
	}
	return errors.Join(errs...)
}
