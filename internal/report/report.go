// Package report renders aggregation results and insights for terminals,
// markdown files and exports.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
	"github.com/KaramelBytes/enrolstat/internal/insight"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultTopN is the number of groups shown when no limit is given.
const DefaultTopN = 10

// Count formats a count with thousands separators, dropping a zero fraction.
func Count(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return humanize.Comma(int64(v))
	}
	return humanize.Commaf(math.Round(v*100) / 100)
}

// Percent formats a 0..1 share.
func Percent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

// Table renders the top groups with their per-category breakdown.
func Table(r *aggregate.Result, topN int) string {
	if r == nil || len(r.Groups) == 0 {
		return "No groups"
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	grand := r.GrandTotal()

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	header := table.Row{"#", r.GroupKeyColumn, "Total", "Share"}
	for _, c := range r.CategoryColumns {
		header = append(header, c)
	}
	tbl.AppendHeader(header)

	n := min(topN, len(r.Groups))
	for i, g := range r.Groups[:n] {
		row := table.Row{i + 1, g.Key, Count(g.Total), Percent(share(g.Total, grand))}
		for _, c := range r.CategoryColumns {
			row = append(row, Count(g.Breakdown[c]))
		}
		tbl.AppendRow(row)
	}

	totals := r.CategoryTotals()
	footer := table.Row{"", fmt.Sprintf("%d groups", len(r.Groups)), Count(grand), ""}
	for _, c := range r.CategoryColumns {
		footer = append(footer, Count(totals[c]))
	}
	tbl.AppendFooter(footer)

	colCfg := []table.ColumnConfig{{Number: 3, Align: text.AlignRight}, {Number: 4, Align: text.AlignRight}}
	for i := range r.CategoryColumns {
		colCfg = append(colCfg, table.ColumnConfig{Number: 5 + i, Align: text.AlignRight})
	}
	tbl.SetColumnConfigs(colCfg)
	return tbl.Render()
}

// DatasetList renders stored dataset entries.
func DatasetList(entries []store.Entry) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Key", "Size", "Updated"})
	for _, e := range entries {
		tbl.AppendRow(table.Row{e.Key, humanize.Bytes(uint64(e.Size)), humanize.Time(e.UpdatedAt)})
	}
	return tbl.Render()
}

// InsightLines describes each available insight in one sentence.
func InsightLines(s insight.Set) []string {
	var out []string
	if d := s.Dominant; d != nil {
		out = append(out, fmt.Sprintf("Dominant category: %s holds %d%% of all records (%s).", d.Column, d.Percent, Count(d.Sum)))
	}
	if sp := s.Spike; sp != nil {
		switch {
		case sp.Neutral:
			out = append(out, fmt.Sprintf("No spike: every group has the same total (%s); %s listed first.", Count(sp.Total), sp.Key))
		case sp.Significant:
			out = append(out, fmt.Sprintf("Significant spike: %s at %s, z-score %.2f above a mean of %s.", sp.Key, Count(sp.Total), sp.ZScore, Count(sp.Mean)))
		default:
			out = append(out, fmt.Sprintf("Highest group: %s at %s (z-score %.2f, not significant).", sp.Key, Count(sp.Total), sp.ZScore))
		}
	}
	if rc := s.Recheck; rc != nil {
		level := "normal"
		if rc.Elevated {
			level = "elevated"
		}
		basis := "columns " + strings.Join(rc.Columns, ", ")
		if rc.Positional {
			basis = "middle columns " + strings.Join(rc.Columns, ", ")
		}
		out = append(out, fmt.Sprintf("Mandatory re-check range: %d%% of records (%s), %s.", rc.Percent, basis, level))
	}
	if c := s.Consistency; c != nil {
		out = append(out, fmt.Sprintf("Pattern consistency: %s leads in %d of %d groups (%.0f%%).", c.Column, c.Wins, c.Groups, c.Score*100))
	}
	return out
}

func share(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return v / total
}
