package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
	"github.com/KaramelBytes/enrolstat/internal/insight"
)

// Markdown renders a run summary: dataset facts, category totals, the top
// groups and the derived insights.
func Markdown(r *aggregate.Result, s insight.Set, topN int) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.JobID != "" {
		b.WriteString(fmt.Sprintf("Job: %s\n", r.JobID))
	}
	if len(r.Sources) > 0 {
		b.WriteString(fmt.Sprintf("Sources: %d (%s)\n", len(r.Sources), strings.Join(r.Sources, ", ")))
	}
	b.WriteString(fmt.Sprintf("Records: %d processed", r.RecordsProcessed))
	if r.RecordsSkipped > 0 {
		b.WriteString(fmt.Sprintf(", %d skipped (blank %s)", r.RecordsSkipped, r.GroupKeyColumn))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Grouped by: %s (%d groups)\n", r.GroupKeyColumn, len(r.Groups)))
	b.WriteString(fmt.Sprintf("Grand total: %s\n", Count(r.GrandTotal())))
	if !r.CreatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Created: %s\n", r.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")))
	}
	b.WriteString("\n")

	b.WriteString("[CATEGORY TOTALS]\n")
	totals := r.CategoryTotals()
	grand := r.GrandTotal()
	for _, c := range r.CategoryColumns {
		b.WriteString(fmt.Sprintf("- %s: %s (%s)\n", safe(c), Count(totals[c]), Percent(share(totals[c], grand))))
	}
	b.WriteString("\n")

	if topN <= 0 {
		topN = DefaultTopN
	}
	n := min(topN, len(r.Groups))
	b.WriteString(fmt.Sprintf("[TOP %d GROUPS]\n", n))
	b.WriteString(fmt.Sprintf("| # | %s | Total |", safe(r.GroupKeyColumn)))
	for _, c := range r.CategoryColumns {
		b.WriteString(fmt.Sprintf(" %s |", safe(c)))
	}
	b.WriteString("\n|---|---|---:|")
	for range r.CategoryColumns {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for i, g := range r.Groups[:n] {
		b.WriteString(fmt.Sprintf("| %d | %s | %s |", i+1, safe(g.Key), Count(g.Total)))
		for _, c := range r.CategoryColumns {
			b.WriteString(fmt.Sprintf(" %s |", Count(g.Breakdown[c])))
		}
		b.WriteString("\n")
	}

	if lines := InsightLines(s); len(lines) > 0 {
		b.WriteString("\n[INSIGHTS]\n")
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	}
	return b.String()
}

func safe(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
