package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes the run's counters in the node-exporter textfile
// format, for scraping by a textfile collector.
func (r *Report) WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()

	records := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fundhub",
			Subsystem: "reconcile",
			Name:      "records",
			Help:      "Records per collection and rule family in the last run, by outcome.",
		},
		[]string{"collection", "family", "outcome"},
	)
	issues := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fundhub",
			Subsystem: "reconcile",
			Name:      "issues",
			Help:      "Issues raised in the last run, by code.",
		},
		[]string{"code"},
	)
	documents := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fundhub",
			Subsystem: "reconcile",
			Name:      "documents",
			Help:      "Documents per collection when the last run scanned the store.",
		},
		[]string{"collection"},
	)
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fundhub",
		Subsystem: "reconcile",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	success := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fundhub",
			Subsystem: "reconcile",
			Name:      "last_run_success",
			Help:      "1 if the last run finished without error.",
		},
		[]string{"mode"},
	)

	for _, c := range []prometheus.Collector{records, issues, documents, lastRun, success} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metric: %w", err)
		}
	}

	for coll, fams := range r.Tallies {
		for fam, t := range fams {
			records.WithLabelValues(coll, fam, "scanned").Set(float64(t.Scanned))
			records.WithLabelValues(coll, fam, "corrected").Set(float64(t.Corrected))
			records.WithLabelValues(coll, fam, "deleted").Set(float64(t.Deleted))
			records.WithLabelValues(coll, fam, "flagged").Set(float64(t.Flagged))
		}
	}
	for code, n := range r.Stats {
		issues.WithLabelValues(code).Set(float64(n))
	}
	for coll, n := range r.Counts {
		documents.WithLabelValues(coll).Set(float64(n))
	}
	lastRun.Set(float64(r.Meta.GeneratedAt.Unix()))
	ok := 0.0
	if r.Meta.Error == "" {
		ok = 1
	}
	success.WithLabelValues(r.Meta.Mode).Set(ok)

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
