// Package insight derives descriptive metrics from an aggregation result.
// Every calculator is a pure function of the result and never mutates it.
package insight

import (
	"math"
	"strings"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
)

const (
	// SpikeThreshold is the z-score above which a spike is significant.
	SpikeThreshold = 1.5
	// RecheckThreshold is the share above which the recheck range is elevated.
	RecheckThreshold = 0.30
)

// recheckTokens mark the biometric re-validation age window.
var recheckTokens = []string{"5_17", "5-17", "5_15", "5-15", "15_17", "15-17"}

// Dominant is the category column with the largest sum across all groups.
type Dominant struct {
	Column  string
	Sum     float64
	Share   float64
	Percent int
}

// Spike is the group whose total stands furthest above the mean.
type Spike struct {
	Key         string
	Total       float64
	Mean        float64
	StdDev      float64
	ZScore      float64
	Significant bool
	// Neutral is set when all totals are equal and no group stands out.
	Neutral bool
}

// Recheck is the share of the grand total held by the recheck-age columns.
type Recheck struct {
	Columns    []string
	Sum        float64
	Fraction   float64
	Percent    int
	Elevated   bool
	Positional bool
}

// Consistency reports how often one column is the largest within a group.
type Consistency struct {
	Column string
	Wins   int
	Groups int
	Score  float64
}

// Set bundles the outputs of all calculators. A nil field means the
// calculator had nothing to report.
type Set struct {
	Dominant    *Dominant
	Spike       *Spike
	Recheck     *Recheck
	Consistency *Consistency
}

// Compute runs every calculator against r.
func Compute(r *aggregate.Result) Set {
	var s Set
	if d, ok := DominantCategory(r); ok {
		s.Dominant = &d
	}
	if sp, ok := DetectSpike(r); ok {
		s.Spike = &sp
	}
	if rc, ok := RecheckRange(r); ok {
		s.Recheck = &rc
	}
	if c, ok := PatternConsistency(r); ok {
		s.Consistency = &c
	}
	return s
}

// DominantCategory returns the column with the largest sum. Ties go to the
// column detected first.
func DominantCategory(r *aggregate.Result) (Dominant, bool) {
	if r == nil || len(r.Groups) == 0 || len(r.CategoryColumns) == 0 {
		return Dominant{}, false
	}
	sums := columnSums(r)
	best := Dominant{Column: r.CategoryColumns[0], Sum: sums[0]}
	for i, c := range r.CategoryColumns[1:] {
		if sums[i+1] > best.Sum {
			best = Dominant{Column: c, Sum: sums[i+1]}
		}
	}
	if grand := r.GrandTotal(); grand > 0 {
		best.Share = best.Sum / grand
		best.Percent = percent(best.Share)
	}
	return best, true
}

// DetectSpike finds the group with the highest z-score among groups above
// the mean. When every total is equal the first group is returned with
// Neutral set.
func DetectSpike(r *aggregate.Result) (Spike, bool) {
	if r == nil || len(r.Groups) == 0 {
		return Spike{}, false
	}
	n := float64(len(r.Groups))
	var sum float64
	for _, g := range r.Groups {
		sum += g.Total
	}
	mean := sum / n
	var ss float64
	for _, g := range r.Groups {
		d := g.Total - mean
		ss += d * d
	}
	std := math.Sqrt(ss / n)

	if std <= 1e-12*math.Max(1, math.Abs(mean)) {
		g := r.Groups[0]
		return Spike{Key: g.Key, Total: g.Total, Mean: mean, Neutral: true}, true
	}
	var best *aggregate.GroupAggregate
	bestZ := math.Inf(-1)
	for i := range r.Groups {
		g := &r.Groups[i]
		if g.Total <= mean {
			continue
		}
		if z := (g.Total - mean) / std; z > bestZ {
			best, bestZ = g, z
		}
	}
	if best == nil {
		return Spike{}, false
	}
	return Spike{
		Key:         best.Key,
		Total:       best.Total,
		Mean:        mean,
		StdDev:      std,
		ZScore:      bestZ,
		Significant: bestZ > SpikeThreshold,
	}, true
}

// RecheckRange measures the recheck-age columns. Without a matching column
// name it falls back to the middle third of the category columns, which needs
// at least three columns.
func RecheckRange(r *aggregate.Result) (Recheck, bool) {
	if r == nil || len(r.Groups) == 0 || len(r.CategoryColumns) == 0 {
		return Recheck{}, false
	}
	var cols []string
	for _, c := range r.CategoryColumns {
		lc := strings.ToLower(c)
		for _, tok := range recheckTokens {
			if strings.Contains(lc, tok) {
				cols = append(cols, c)
				break
			}
		}
	}
	rc := Recheck{}
	if len(cols) == 0 {
		n := len(r.CategoryColumns)
		start, end := n/3, 2*n/3
		if start == end {
			return Recheck{}, false
		}
		cols = append(cols, r.CategoryColumns[start:end]...)
		rc.Positional = true
	}
	rc.Columns = cols

	for _, g := range r.Groups {
		for _, c := range cols {
			rc.Sum += g.Breakdown[c]
		}
	}
	if grand := r.GrandTotal(); grand > 0 {
		rc.Fraction = rc.Sum / grand
		rc.Percent = percent(rc.Fraction)
	}
	rc.Elevated = rc.Fraction > RecheckThreshold
	return rc, true
}

// PatternConsistency finds the column that most often wins within a group.
// Groups whose breakdown is all zero have no winner but still count toward
// the score denominator.
func PatternConsistency(r *aggregate.Result) (Consistency, bool) {
	if r == nil || len(r.Groups) == 0 || len(r.CategoryColumns) == 0 {
		return Consistency{}, false
	}
	wins := make([]int, len(r.CategoryColumns))
	for _, g := range r.Groups {
		winner, top := -1, 0.0
		for i, c := range r.CategoryColumns {
			if v := g.Breakdown[c]; v > top {
				winner, top = i, v
			}
		}
		if winner >= 0 {
			wins[winner]++
		}
	}
	best := 0
	for i := 1; i < len(wins); i++ {
		if wins[i] > wins[best] {
			best = i
		}
	}
	if wins[best] == 0 {
		return Consistency{}, false
	}
	return Consistency{
		Column: r.CategoryColumns[best],
		Wins:   wins[best],
		Groups: len(r.Groups),
		Score:  float64(wins[best]) / float64(len(r.Groups)),
	}, true
}

func columnSums(r *aggregate.Result) []float64 {
	sums := make([]float64, len(r.CategoryColumns))
	for _, g := range r.Groups {
		for i, c := range r.CategoryColumns {
			sums[i] += g.Breakdown[c]
		}
	}
	return sums
}

func percent(f float64) int { return int(math.Round(f * 100)) }
