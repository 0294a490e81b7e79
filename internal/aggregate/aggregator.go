// Package aggregate streams delimited records into per-group totals with a
// per-category breakdown.
//
// An Accumulator is owned by a single job and moves through
// Idle → Detecting → Accumulating → Finalized, or to Failed on the first
// error. Column roles are detected once, from the first non-empty chunk,
// and stay frozen for the rest of the job.
package aggregate

import (
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/enrolstat/internal/csvstream"
)

// State is the lifecycle position of an Accumulator.
type State int

const (
	Idle State = iota
	Detecting
	Accumulating
	Finalized
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	case Accumulating:
		return "accumulating"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// GroupAggregate is the running total for one grouping key. Total always
// equals the sum of Breakdown values.
type GroupAggregate struct {
	Key       string             `json:"state"`
	Total     float64            `json:"total"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Result is the finalized, immutable output of a job. Groups are sorted by
// Total descending; equal totals keep first-encountered order.
type Result struct {
	JobID            string           `json:"jobId"`
	GroupKeyColumn   string           `json:"groupKeyColumn"`
	CategoryColumns  []string         `json:"categoryColumns"`
	Groups           []GroupAggregate `json:"groups"`
	Sources          []string         `json:"sources"`
	RecordsProcessed int64            `json:"recordsProcessed"`
	RecordsSkipped   int64            `json:"recordsSkipped"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// GrandTotal sums every group total.
func (r *Result) GrandTotal() float64 {
	var sum float64
	for _, g := range r.Groups {
		sum += g.Total
	}
	return sum
}

// CategoryTotals sums each category column across groups.
func (r *Result) CategoryTotals() map[string]float64 {
	out := make(map[string]float64, len(r.CategoryColumns))
	for _, c := range r.CategoryColumns {
		out[c] = 0
	}
	for _, g := range r.Groups {
		for c, v := range g.Breakdown {
			out[c] += v
		}
	}
	return out
}

// Accumulator holds the mutable state of one aggregation job.
type Accumulator struct {
	log     *slog.Logger
	metrics *Metrics
	jobID   string

	state  State
	err    error
	roles  ColumnRoles
	groups map[string]*GroupAggregate
	order  []string

	sources   []string
	processed int64
	skipped   int64
}

// NewAccumulator returns an Idle accumulator.
func NewAccumulator(opts Options) *Accumulator {
	opts = opts.withDefaults()
	return &Accumulator{
		log:     opts.Logger,
		metrics: opts.Metrics,
		jobID:   opts.JobID,
		groups:  make(map[string]*GroupAggregate),
	}
}

// State reports the current lifecycle state.
func (a *Accumulator) State() State { return a.state }

// Roles returns the detected column roles; zero until detection has run.
func (a *Accumulator) Roles() ColumnRoles { return a.roles }

// Err returns the error that moved the accumulator to Failed.
func (a *Accumulator) Err() error { return a.err }

// Consume folds one chunk into the running totals. The first non-empty chunk
// triggers column detection. Empty chunks are ignored.
func (a *Accumulator) Consume(b csvstream.Batch) error {
	switch a.state {
	case Failed:
		return a.err
	case Finalized:
		return ErrFinalized
	}
	if b.Len() == 0 {
		return nil
	}
	if a.state == Idle {
		a.state = Detecting
		roles, err := DetectRoles(b.Fields, b.Records)
		if err != nil {
			a.Fail(err)
			return err
		}
		a.roles = roles
		a.state = Accumulating
		a.log.Info("columns detected",
			"job", a.jobID,
			"group_key", roles.GroupKey,
			"categories", roles.Categories,
			"ignored", roles.Ignored)
	}

	var processed, skipped int
	for _, rec := range b.Records {
		key := strings.TrimSpace(rec[a.roles.GroupKey])
		if key == "" {
			skipped++
			continue
		}
		g, ok := a.groups[key]
		if !ok {
			g = &GroupAggregate{Key: key, Breakdown: make(map[string]float64, len(a.roles.Categories))}
			for _, c := range a.roles.Categories {
				g.Breakdown[c] = 0
			}
			a.groups[key] = g
			a.order = append(a.order, key)
		}
		for _, c := range a.roles.Categories {
			v := Coerce(rec[c])
			g.Breakdown[c] += v
			g.Total += v
		}
		processed++
	}
	a.processed += int64(processed)
	a.skipped += int64(skipped)
	a.metrics.chunk(processed, skipped)
	return nil
}

// Fail moves the accumulator to Failed. Later calls return err.
func (a *Accumulator) Fail(err error) {
	if a.state == Failed || err == nil {
		return
	}
	a.state = Failed
	a.err = err
}

// Finalize sorts the groups and returns the result. A job with no groups
// fails with ErrEmptyResult.
func (a *Accumulator) Finalize(now time.Time) (*Result, error) {
	switch a.state {
	case Failed:
		return nil, a.err
	case Finalized:
		return nil, ErrFinalized
	}
	if len(a.order) == 0 {
		a.Fail(ErrEmptyResult)
		return nil, ErrEmptyResult
	}
	r := a.finalize(now)
	a.state = Finalized
	return r, nil
}

func (a *Accumulator) addSource(name string) {
	a.sources = append(a.sources, name)
}
