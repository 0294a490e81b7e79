package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/enrolstat/internal/report"
	"github.com/KaramelBytes/enrolstat/internal/snapshot"
	"github.com/spf13/cobra"
)

var (
	sharePassphrase  string
	sharePrompt      bool
	shareAttribution string
	shareBaseURL     string
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Encode the stored dataset summary as a shareable snapshot link",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		_, res, err := loadDataset(cmd.Context(), datasetKey)
		if err != nil {
			return err
		}
		attribution := c.Attribution
		if cmd.Flags().Changed("attribution") {
			attribution = shareAttribution
		}
		base := c.ShareBaseURL
		if shareBaseURL != "" {
			base = shareBaseURL
		}
		pass := sharePassphrase
		if sharePrompt {
			if pass, err = promptPassphrase("Passphrase (empty for none)"); err != nil {
				return err
			}
			if pass != "" {
				confirm, err := promptPassphrase("Confirm passphrase")
				if err != nil {
					return err
				}
				if confirm != pass {
					return errors.New("passphrases do not match")
				}
			}
		}

		sum, err := snapshot.Summarize(res, attribution, time.Now())
		if err != nil {
			return err
		}
		token, err := snapshot.Encode(sum, pass)
		if err != nil {
			return err
		}
		link, err := snapshot.ShareURL(base, token)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Token:", token)
		fmt.Fprintln(out, "URL:  ", link)
		mode := "plain"
		if pass != "" {
			mode = "passphrase protected"
		}
		success("Snapshot of %d groups (total %s), %d characters, %s", sum.Groups, report.Count(sum.Total), len(token), mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
	shareCmd.Flags().StringVar(&sharePassphrase, "passphrase", "", "encrypt the snapshot with this passphrase")
	shareCmd.Flags().BoolVar(&sharePrompt, "prompt", false, "prompt for the passphrase instead of passing it as a flag")
	shareCmd.Flags().StringVar(&shareAttribution, "attribution", "", "attribution text carried in the snapshot (default from config)")
	shareCmd.Flags().StringVar(&shareBaseURL, "base-url", "", "base URL for the share link (default from config)")
}
