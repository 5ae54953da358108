package rules

import (
	"context"
	"fmt"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	m "github.com/dalemusser/fundhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options toggles the optional rule families.
type Options struct {
	Concurrency     int
	ConvertDollars  bool
	DollarThreshold float64
	StripMarkup     bool
	CoachRebuild    bool
	PublicDonors    bool
	DonorAggregates bool
	AthleteTotals   bool
}

// DefaultOptions enables everything except the dollars heuristic.
func DefaultOptions() Options {
	return Options{
		Concurrency:     8,
		DollarThreshold: 100,
		StripMarkup:     true,
		CoachRebuild:    true,
		PublicDonors:    true,
		DonorAggregates: true,
		AthleteTotals:   true,
	}
}

// Snapshot is the view of the store a plan is computed against.
// *xref.Resolver implements it.
type Snapshot interface {
	Lookup
	IDs(collection string) []string
	Apply(writes []docstore.Write)
}

// Plan is the result of evaluating every collection.
type Plan struct {
	Writes    []docstore.Write
	Issues    []Issue
	Evaluated map[string]int
}

// Engine evaluates records against a policy table.
type Engine struct {
	table policy.Table
	opts  Options
	log   *zap.Logger
	rules map[string][]Rule
	aggs  map[string][]Rule
}

// NewEngine builds the rule list for every collection in table.
func NewEngine(table policy.Table, opts Options, logger *zap.Logger) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	e := &Engine{
		table: table,
		opts:  opts,
		log:   logger,
		rules: make(map[string][]Rule),
		aggs:  make(map[string][]Rule),
	}
	for _, c := range table.Collections {
		for _, f := range policy.Families {
			if !c.Has(f) {
				continue
			}
			for _, r := range e.build(c, f) {
				if f == policy.FamilyAggregate {
					e.aggs[c.Name] = append(e.aggs[c.Name], r)
				} else {
					e.rules[c.Name] = append(e.rules[c.Name], r)
				}
			}
		}
	}
	return e
}

func (e *Engine) build(c policy.Collection, f policy.Family) []Rule {
	switch f {
	case policy.FamilyBlobScrub:
		return []Rule{blobScrub{}}
	case policy.FamilyNormalize:
		return []Rule{normalizeFields{coll: c, stripMarkup: e.opts.StripMarkup}}
	case policy.FamilyCurrency:
		return []Rule{currency{convertDollars: e.opts.ConvertDollars, threshold: e.opts.DollarThreshold}}
	case policy.FamilyDerive:
		return []Rule{derive{derivations: c.Derive, table: e.table}}
	case policy.FamilyDefaultFill:
		return []Rule{defaultFill{fields: c.Defaults, table: e.table}}
	case policy.FamilyOrphan:
		return []Rule{orphan{relations: c.Relations, table: e.table}}
	case policy.FamilyDerivedEntity:
		switch c.Name {
		case m.Users:
			if e.opts.CoachRebuild {
				return []Rule{coachRebuild{}}
			}
		case m.Coaches:
			return []Rule{coachCheck{}}
		case m.Donations:
			if e.opts.PublicDonors {
				return []Rule{publicDonor{table: e.table}}
			}
		}
	case policy.FamilyAggregate:
		switch c.Name {
		case m.Donors:
			if e.opts.DonorAggregates {
				return []Rule{donationTotals{via: m.FieldDonorID, totalKey: m.FieldTotalDonations, latestKey: m.FieldLastDonationAt}}
			}
		case m.Athletes:
			if e.opts.AthleteTotals {
				return []Rule{donationTotals{via: m.FieldAthleteID, totalKey: m.FieldTotalRaised}}
			}
		}
	}
	return nil
}

// Evaluate runs every non-aggregate rule enabled for rec's collection.
func (e *Engine) Evaluate(rec Record, res Lookup) *Outcome {
	return e.run(rec, res, e.rules[rec.Collection])
}

// Aggregate runs the aggregate rules for rec's collection. They read the
// donations collection, so Plan runs them after every collection has been
// corrected.
func (e *Engine) Aggregate(rec Record, res Lookup) *Outcome {
	return e.run(rec, res, e.aggs[rec.Collection])
}

// run never fails: a rule that panics on a malformed record leaves the record
// unchanged and flags it.
func (e *Engine) run(rec Record, res Lookup, rules []Rule) (out *Outcome) {
	out = newOutcome(rec)
	defer func() {
		if p := recover(); p != nil {
			e.log.Warn("rule failed on record",
				zap.String("collection", rec.Collection),
				zap.String("id", rec.ID),
				zap.String("family", string(out.family)),
				zap.Any("panic", p),
			)
			bad := newOutcome(rec)
			bad.family = out.family
			bad.Flag(CodeMalformedRecord, fmt.Sprint(p))
			out = bad
		}
	}()
	for _, r := range rules {
		out.family = r.Family()
		r.Evaluate(rec, res, out)
	}
	return out
}

// Plan evaluates every collection in table order, overlaying each
// collection's writes onto snap before the next one, then runs aggregates.
func (e *Engine) Plan(ctx context.Context, snap Snapshot) (*Plan, error) {
	p := &Plan{Evaluated: make(map[string]int)}
	var writes []docstore.Write

	for _, c := range e.table.Collections {
		ws, issues, n, err := e.pass(ctx, snap, c.Name, e.Evaluate)
		if err != nil {
			return nil, err
		}
		snap.Apply(ws)
		writes = append(writes, ws...)
		p.Issues = append(p.Issues, issues...)
		p.Evaluated[c.Name] = n
	}

	for _, c := range e.table.Collections {
		if len(e.aggs[c.Name]) == 0 {
			continue
		}
		ws, issues, _, err := e.pass(ctx, snap, c.Name, e.Aggregate)
		if err != nil {
			return nil, err
		}
		snap.Apply(ws)
		writes = append(writes, ws...)
		p.Issues = append(p.Issues, issues...)
	}

	p.Writes = MergeWrites(writes)
	return p, nil
}

// pass evaluates one collection with bounded parallelism. Results are kept by
// index so the output order follows the sorted ids.
func (e *Engine) pass(ctx context.Context, snap Snapshot, coll string, eval func(Record, Lookup) *Outcome) ([]docstore.Write, []Issue, int, error) {
	ids := snap.IDs(coll)
	outs := make([]*Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fields, _ := snap.Resolve(coll, id)
			outs[i] = eval(Record{Collection: coll, ID: id, Fields: fields}, snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, fmt.Errorf("evaluate %s: %w", coll, err)
	}

	var writes []docstore.Write
	var issues []Issue
	for _, o := range outs {
		writes = append(writes, o.Writes()...)
		issues = append(issues, o.Issues...)
	}
	e.log.Debug("collection evaluated",
		zap.String("collection", coll),
		zap.Int("records", len(ids)),
		zap.Int("writes", len(writes)),
		zap.Int("issues", len(issues)),
	)
	return writes, issues, len(ids), nil
}
