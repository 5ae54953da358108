// Package report tallies a reconcile run and renders it for operators.
//
// Nothing here feeds back into repair decisions.
package report

import (
	"errors"
	"sort"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/batch"
	"github.com/dalemusser/fundhub/internal/app/system/rules"
	"github.com/google/uuid"
)

// Run modes.
const (
	ModeDryRun = "dry-run"
	ModeApply  = "apply"
)

// AllFamilies is the tally key for a collection's totals.
const AllFamilies = "all"

// Meta identifies the run.
type Meta struct {
	ScopeID     string    `json:"scopeId"`
	RunID       string    `json:"runId"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"startedAt"`
	GeneratedAt time.Time `json:"generatedAt"`
	Phase       string    `json:"phase"`
	Error       string    `json:"error,omitempty"`
}

// Tally counts what happened to one collection, overall or for one family.
type Tally struct {
	Scanned   int `json:"scanned"`
	Corrected int `json:"corrected"`
	Deleted   int `json:"deleted"`
	Flagged   int `json:"flagged"`
}

// Commit summarizes the batch writer's result.
type Commit struct {
	Chunks      int      `json:"chunks"`
	Committed   int      `json:"committed"`
	Created     int      `json:"created"`
	Existing    int      `json:"existing"`
	FailedChunk *int     `json:"failedChunk,omitempty"`
	FailedKeys  []string `json:"failedKeys,omitempty"`
}

// Report is the structured result of one run.
type Report struct {
	Meta    Meta                        `json:"meta"`
	Counts  map[string]int              `json:"counts"`
	Issues  []rules.Issue               `json:"issues"`
	Stats   map[string]int              `json:"stats"`
	Tallies map[string]map[string]Tally `json:"tallies"`
	Commit  *Commit                     `json:"commit,omitempty"`
	Writes  []docstore.Write            `json:"writes"`
}

// New starts a report for a run.
func New(scopeID, mode string) *Report {
	return &Report{
		Meta: Meta{
			ScopeID:   scopeID,
			RunID:     uuid.NewString(),
			Mode:      mode,
			StartedAt: time.Now().UTC(),
		},
		Counts:  make(map[string]int),
		Stats:   make(map[string]int),
		Tallies: make(map[string]map[string]Tally),
	}
}

// SetCounts records the collection sizes seen while scanning.
func (r *Report) SetCounts(counts map[string]int) {
	for k, v := range counts {
		r.Counts[k] = v
	}
}

// AddPlan records the plan's writes and issues and tallies them.
func (r *Report) AddPlan(p *rules.Plan) {
	r.Writes = append(r.Writes, p.Writes...)
	r.Issues = append(r.Issues, p.Issues...)

	for coll, n := range p.Evaluated {
		t := r.tally(coll, AllFamilies)
		t.Scanned = n
		r.setTally(coll, AllFamilies, t)
	}

	for _, w := range p.Writes {
		total := r.tally(w.Collection, AllFamilies)
		bump(&total, w.Op)
		r.setTally(w.Collection, AllFamilies, total)
		for _, f := range w.Families {
			t := r.tally(w.Collection, f)
			bump(&t, w.Op)
			r.setTally(w.Collection, f, t)
		}
	}

	for _, is := range p.Issues {
		r.Stats[is.Code]++
		total := r.tally(is.Collection, AllFamilies)
		total.Flagged++
		r.setTally(is.Collection, AllFamilies, total)
		t := r.tally(is.Collection, string(is.Family))
		t.Flagged++
		r.setTally(is.Collection, string(is.Family), t)
	}

	// Family rows share the collection's scanned count.
	for coll, fams := range r.Tallies {
		scanned := fams[AllFamilies].Scanned
		for f, t := range fams {
			t.Scanned = scanned
			fams[f] = t
		}
		r.Tallies[coll] = fams
	}
}

func bump(t *Tally, op docstore.Op) {
	if op == docstore.OpDelete {
		t.Deleted++
	} else {
		t.Corrected++
	}
}

func (r *Report) tally(coll, family string) Tally {
	return r.Tallies[coll][family]
}

func (r *Report) setTally(coll, family string, t Tally) {
	if r.Tallies[coll] == nil {
		r.Tallies[coll] = make(map[string]Tally)
	}
	r.Tallies[coll][family] = t
}

// AddCommit records the batch writer's result and, when it failed, the
// chunk that failed.
func (r *Report) AddCommit(res batch.Result, err error) {
	c := &Commit{
		Chunks:    res.Chunks,
		Committed: res.Committed,
		Created:   res.Created,
		Existing:  res.Existing,
	}
	var ce *batch.ChunkError
	if errors.As(err, &ce) {
		idx := ce.Index
		c.FailedChunk = &idx
		c.FailedKeys = ce.Keys
	}
	r.Commit = c
}

// Finish stamps the report with the phase the run ended in.
func (r *Report) Finish(phase string, err error) {
	r.Meta.Phase = phase
	r.Meta.GeneratedAt = time.Now().UTC()
	if err != nil {
		r.Meta.Error = err.Error()
	}
}

// Codes returns the issue codes seen, sorted.
func (r *Report) Codes() []string {
	out := make([]string, 0, len(r.Stats))
	for c := range r.Stats {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Collections returns the tallied collections, sorted.
func (r *Report) Collections() []string {
	seen := make(map[string]bool)
	for c := range r.Tallies {
		seen[c] = true
	}
	for c := range r.Counts {
		seen[c] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
