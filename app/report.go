package app

import (
	"sort"
	"time"

	"govcomms/domain"
)

// RunReport aggregates the cycle summaries of one batch run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Cycles   []domain.CycleSummary
	NewItems int
	Skipped  int
	Failures int

	GlobalRendered []domain.AssetKind
	GlobalErr      error
}

func newRunReport(id string, start time.Time) *RunReport {
	return &RunReport{RunID: id, StartedAt: start}
}

func (r *RunReport) add(c domain.CycleSummary) {
	r.Cycles = append(r.Cycles, c)
	r.NewItems += c.NewCount
	r.Skipped += c.SkippedCount
	if c.Failed() {
		r.Failures++
	}
}

func (r *RunReport) finish(t time.Time) {
	r.FinishedAt = t
	sort.Slice(r.Cycles, func(i, j int) bool { return r.Cycles[i].SourceID < r.Cycles[j].SourceID })
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// OK reports whether every cycle and the global render succeeded.
func (r *RunReport) OK() bool {
	return r.Failures == 0 && r.GlobalErr == nil
}
