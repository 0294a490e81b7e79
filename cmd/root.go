package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
	cfgpkg "github.com/KaramelBytes/enrolstat/internal/config"
	"github.com/KaramelBytes/enrolstat/internal/snapshot"
	"github.com/KaramelBytes/enrolstat/internal/source"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	quiet   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:           "enrolstat",
	Short:         "enrolstat: aggregate enrolment CSVs by state and share compact snapshots",
	Long:          `enrolstat streams enrolment/update CSV files (or ZIP archives of them), detects the state and age-band columns, aggregates totals per state, derives insights and encodes shareable snapshot links.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "  →", hint)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig, setupLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.enrolstat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress and status output")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}

func setupLogging() {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// settings returns the loaded config, falling back to defaults.
func settings() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// openStore opens the configured backend, bounded by store_open_timeout_sec.
func openStore(ctx context.Context) (store.Store, error) {
	c, err := settings()
	if err != nil {
		return nil, err
	}
	quota, err := c.QuotaBytes()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.OpenTimeout())
	defer cancel()
	st, err := store.Open(ctx, c.StoreBackend, c.StorePath, store.Options{QuotaBytes: quota})
	if err != nil {
		return nil, err
	}
	slog.Debug("store opened", "backend", c.StoreBackend, "path", c.StorePath)
	return st, nil
}

// loadDataset reads a stored dataset and converts it back to a result.
func loadDataset(ctx context.Context, key string) (*store.Dataset, *aggregate.Result, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()
	d, err := store.LoadDataset(ctx, st, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w (run `enrolstat ingest` first)", err)
		}
		return nil, nil, err
	}
	return d, d.Result(), nil
}

// errorHint tells the user what kind of action fixes err.
func errorHint(err error) string {
	switch {
	case errors.Is(err, aggregate.ErrSchemaDetection):
		return "could not identify data columns; check that the file has a state column and numeric age/count columns"
	case errors.Is(err, aggregate.ErrEmptyResult), errors.Is(err, source.ErrNoSources):
		return "no valid data found; fix the input files and retry"
	case errors.Is(err, aggregate.ErrSourceRead):
		return "a source could not be read; fix or remove it and retry"
	case errors.Is(err, store.ErrInvalidDataset):
		return "the document does not match the processed_data.json layout; re-export it with `enrolstat export`"
	case errors.Is(err, store.ErrStorageExhausted):
		return "storage is full; reduce the input size, delete old datasets or raise store_quota"
	case errors.Is(err, snapshot.ErrIncorrectPassphrase), errors.Is(err, snapshot.ErrPassphraseRequired):
		return "re-enter the passphrase"
	case errors.Is(err, snapshot.ErrInvalidSummary):
		return "group names must be valid UTF-8 text; check the source file encoding"
	case errors.Is(err, snapshot.ErrSnapshotFormat):
		return "the snapshot token is corrupt or truncated; copy the full link again"
	case errors.Is(err, context.Canceled):
		return "interrupted; nothing was saved"
	}
	return ""
}
