package cmd

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/enrolstat/internal/report"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		entries, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no datasets)")
			return nil
		}
		// current dataset first, then most recent
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Key == store.CurrentDatasetKey && entries[j].Key != store.CurrentDatasetKey
		})
		fmt.Fprintln(cmd.OutOrStdout(), report.DatasetList(entries))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a stored dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		success("Deleted dataset %q", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}
