package cmd

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/enrolstat/internal/report"
	"github.com/KaramelBytes/enrolstat/internal/snapshot"
	"github.com/spf13/cobra"
)

const maxPassphraseAttempts = 3

var openPassphrase string

var openCmd = &cobra.Command{
	Use:   "open <token|url>",
	Short: "Decode a snapshot token or share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := snapshot.TokenFromURL(args[0])
		if err != nil {
			return err
		}
		env, err := snapshot.Inspect(token)
		if err != nil {
			return err
		}
		sum, err := decodeSnapshot(token, env.Encrypted, cmd.Flags().Changed("passphrase"))
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

// decodeSnapshot decodes token, prompting for a passphrase when needed. A
// passphrase given by flag is tried once; prompted ones are retried.
func decodeSnapshot(token string, encrypted, fromFlag bool) (snapshot.Summary, error) {
	if !encrypted {
		return snapshot.Decode(token, "")
	}
	if fromFlag {
		return snapshot.Decode(token, openPassphrase)
	}
	var err error
	for attempt := 1; attempt <= maxPassphraseAttempts; attempt++ {
		var pass string
		if pass, err = promptPassphrase("Passphrase"); err != nil {
			return snapshot.Summary{}, err
		}
		var sum snapshot.Summary
		sum, err = snapshot.Decode(token, pass)
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, snapshot.ErrIncorrectPassphrase) && !errors.Is(err, snapshot.ErrPassphraseRequired) {
			return snapshot.Summary{}, err
		}
		if attempt < maxPassphraseAttempts {
			warn("Incorrect passphrase (%d/%d)", attempt, maxPassphraseAttempts)
		}
	}
	return snapshot.Summary{}, err
}

func printSummary(cmd *cobra.Command, s snapshot.Summary) {
	out := cmd.OutOrStdout()
	key := s.GroupKeyColumn
	if key == "" {
		key = "group"
	}
	fmt.Fprintf(out, "Snapshot created %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04"))
	if s.Attribution != "" {
		fmt.Fprintf(out, "Attribution: %s\n", s.Attribution)
	}
	fmt.Fprintf(out, "Total: %s across %d %s values\n", boldCyan(report.Count(s.Total)), s.Groups, key)
	fmt.Fprintf(out, "Top: %s (%s)\n", boldGreen(s.TopKey), report.Count(s.TopTotal))
	fmt.Fprintf(out, "Bottom: %s (%s)\n", s.BottomKey, report.Count(s.BottomTotal))
	for i, e := range s.TopN {
		fmt.Fprintf(out, "%3d. %-28s %14s\n", i+1, e.Key, report.Count(e.Total))
	}
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().StringVar(&openPassphrase, "passphrase", "", "passphrase for an encrypted snapshot (prompted when omitted)")
}
