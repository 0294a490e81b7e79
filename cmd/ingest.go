package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
	cfgpkg "github.com/KaramelBytes/enrolstat/internal/config"
	"github.com/KaramelBytes/enrolstat/internal/insight"
	"github.com/KaramelBytes/enrolstat/internal/report"
	"github.com/KaramelBytes/enrolstat/internal/source"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/KaramelBytes/enrolstat/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	ingestChunkSize   int
	ingestDelimiter   string
	ingestKey         string
	ingestNoSave      bool
	ingestTopN        int
	ingestMarkdown    string
	ingestMetricsFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <paths...>",
	Short: "Aggregate CSV files, directories, globs or ZIP archives by state",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		delim, err := c.DelimiterRune()
		if cmd.Flags().Changed("delimiter") {
			delim, err = cfgpkg.ParseDelimiter(ingestDelimiter)
		}
		if err != nil {
			return err
		}
		chunk := c.ChunkSize
		if ingestChunkSize > 0 {
			chunk = ingestChunkSize
		}
		topN := c.TopN
		if ingestTopN > 0 {
			topN = ingestTopN
		}

		set, err := source.Collect(args)
		if err != nil {
			return err
		}
		defer set.Close()

		var total int64
		for _, s := range set.Sources {
			total += s.Size
		}
		info("Reading %d source(s), %s", len(set.Sources), humanize.Bytes(uint64(total)))

		metrics, err := aggregate.NewMetrics()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		bar := startProgress(len(set.Sources), "Aggregating")
		res, err := aggregate.Run(ctx, set.Sources, aggregate.Options{
			ChunkSize: chunk,
			Delimiter: delim,
			Logger:    slog.Default(),
			Metrics:   metrics,
			OnSource: func(i, n int, name string) {
				if i > 0 {
					bar.increment()
				}
				bar.title(fmt.Sprintf("Aggregating %s", name))
			},
		})
		bar.increment()
		bar.stop()
		if ingestMetricsFile != "" {
			if werr := prometheus.WriteToTextfile(ingestMetricsFile, metrics.Registry); werr != nil {
				warn("failed to write metrics: %v", werr)
			}
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, report.Table(res, topN))
		ins := insight.Compute(res)
		for _, line := range report.InsightLines(ins) {
			fmt.Fprintln(out, "•", line)
		}

		if ingestMarkdown != "" {
			if err := utils.SafeWriteFile(ingestMarkdown, []byte(report.Markdown(res, ins, topN))); err != nil {
				return fmt.Errorf("write markdown report: %w", err)
			}
			info("Report written to %s", ingestMarkdown)
		}

		if ingestNoSave {
			success("Aggregated %s records into %d groups (not saved)", humanize.Comma(int64(res.RecordsProcessed)), len(res.Groups))
			return nil
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := store.SaveDataset(cmd.Context(), st, ingestKey, store.FromResult(res)); err != nil {
			return err
		}
		success("Aggregated %s records into %d groups, saved as %q", humanize.Comma(int64(res.RecordsProcessed)), len(res.Groups), ingestKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "records per chunk (default from config)")
	ingestCmd.Flags().StringVar(&ingestDelimiter, "delimiter", "", "field delimiter: a single character, 'tab' or 'auto'")
	ingestCmd.Flags().StringVar(&ingestKey, "key", store.CurrentDatasetKey, "dataset key to save under")
	ingestCmd.Flags().BoolVar(&ingestNoSave, "no-save", false, "do not persist the result")
	ingestCmd.Flags().IntVar(&ingestTopN, "top", 0, "number of groups to print (default from config)")
	ingestCmd.Flags().StringVarP(&ingestMarkdown, "markdown", "o", "", "write a markdown report to this path")
	ingestCmd.Flags().StringVar(&ingestMetricsFile, "metrics-file", "", "write Prometheus metrics in text format to this path")
}
