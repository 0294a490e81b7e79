package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/enrolstat/internal/report"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/KaramelBytes/enrolstat/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
	importKey    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored dataset as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, res, err := loadDataset(cmd.Context(), datasetKey)
		if err != nil {
			return err
		}
		format := strings.ToLower(exportFormat)
		var buf bytes.Buffer
		switch format {
		case "json":
			err = report.WriteJSON(&buf, d)
		case "csv":
			err = report.WriteCSV(&buf, res)
		default:
			return fmt.Errorf("invalid --format: %s (use json or csv)", exportFormat)
		}
		if err != nil {
			return err
		}

		out := exportOut
		if !cmd.Flags().Changed("output") {
			out = "processed_data." + format
		}
		if out == "-" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := utils.SafeWriteFile(out, buf.Bytes()); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		success("Exported %d groups to %s (%s)", len(res.Groups), out, humanize.Bytes(uint64(buf.Len())))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <processed_data.json>",
	Short: "Validate and store a previously exported JSON dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		d, err := store.ParseDataset(b)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := store.SaveDataset(cmd.Context(), st, importKey, d); err != nil {
			return err
		}
		success("Imported %d groups from %s as %q", len(d.Data), args[0], importKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importKey, "key", store.CurrentDatasetKey, "dataset key to save under")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "processed_data.json", "output path, '-' for stdout")
}
