package aggregate

import (
	"maps"
	"sort"
	"time"
)

// finalize copies the accumulated groups into an independent, sorted Result.
func (a *Accumulator) finalize(now time.Time) *Result {
	groups := make([]GroupAggregate, 0, len(a.order))
	for _, key := range a.order {
		g := a.groups[key]
		groups = append(groups, GroupAggregate{
			Key:       g.Key,
			Total:     g.Total,
			Breakdown: maps.Clone(g.Breakdown),
		})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Total > groups[j].Total })

	return &Result{
		JobID:            a.jobID,
		GroupKeyColumn:   a.roles.GroupKey,
		CategoryColumns:  append([]string(nil), a.roles.Categories...),
		Groups:           groups,
		Sources:          append([]string(nil), a.sources...),
		RecordsProcessed: a.processed,
		RecordsSkipped:   a.skipped,
		CreatedAt:        now,
	}
}
