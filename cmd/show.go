package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/enrolstat/internal/insight"
	"github.com/KaramelBytes/enrolstat/internal/report"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/spf13/cobra"
)

var (
	datasetKey string
	showTopN   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored dataset: top groups and category totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, res, err := loadDataset(cmd.Context(), datasetKey)
		if err != nil {
			return err
		}
		topN := showTopN
		if topN <= 0 {
			c, err := settings()
			if err != nil {
				return err
			}
			topN = c.TopN
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Dataset %s (job %s, %s)\n", boldCyan(datasetKey), d.Metadata.JobID, d.Metadata.Timestamp.Local().Format("2006-01-02 15:04"))
		if len(d.Metadata.Sources) > 0 {
			fmt.Fprintf(out, "Sources: %s\n", strings.Join(d.Metadata.Sources, ", "))
		}
		fmt.Fprintln(out, report.Table(res, topN))
		fmt.Fprintln(out, "Category totals:")
		totals := res.CategoryTotals()
		grand := res.GrandTotal()
		for _, col := range res.CategoryColumns {
			s := 0.0
			if grand > 0 {
				s = totals[col] / grand
			}
			fmt.Fprintf(out, "  %-24s %14s  %6s\n", col, report.Count(totals[col]), report.Percent(s))
		}
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print insights derived from the stored dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, err := loadDataset(cmd.Context(), datasetKey)
		if err != nil {
			return err
		}
		set := insight.Compute(res)
		out := cmd.OutOrStdout()
		lines := report.InsightLines(set)
		if len(lines) == 0 {
			fmt.Fprintln(out, "(no insights)")
			return nil
		}
		for _, line := range lines {
			fmt.Fprintln(out, "•", highlight(line))
		}
		return nil
	},
}

// highlight colours the label before the first colon.
func highlight(line string) string {
	label, rest, ok := strings.Cut(line, ":")
	if !ok {
		return line
	}
	switch {
	case strings.HasPrefix(label, "Significant"):
		return boldYellow(label+":") + rest
	case strings.HasPrefix(label, "Mandatory") && strings.HasSuffix(rest, "elevated."):
		return boldYellow(label+":") + rest
	}
	return boldGreen(label+":") + rest
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(insightsCmd)
	for _, c := range []*cobra.Command{showCmd, insightsCmd, exportCmd, shareCmd} {
		c.Flags().StringVar(&datasetKey, "key", store.CurrentDatasetKey, "dataset key to read")
	}
	showCmd.Flags().IntVar(&showTopN, "top", 0, "number of groups to print (default from config)")
}
