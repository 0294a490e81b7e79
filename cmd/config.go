package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/enrolstat/internal/config"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set enrolstat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_dir: %s\n", cfg.DataDir)
		fmt.Fprintf(out, "store_backend: %s\n", cfg.StoreBackend)
		fmt.Fprintf(out, "store_path: %s\n", cfg.StorePath)
		if q, err := cfg.QuotaBytes(); err == nil && q > 0 {
			fmt.Fprintf(out, "store_quota: %s\n", humanize.Bytes(uint64(q)))
		} else {
			fmt.Fprintln(out, "store_quota: unlimited")
		}
		fmt.Fprintf(out, "store_open_timeout_sec: %d\n", int(cfg.OpenTimeout().Seconds()))
		fmt.Fprintf(out, "chunk_size: %d\n", cfg.ChunkSize)
		if cfg.Delimiter == "" {
			fmt.Fprintln(out, "delimiter: auto")
		} else {
			fmt.Fprintf(out, "delimiter: %q\n", cfg.Delimiter)
		}
		fmt.Fprintf(out, "top_n: %d\n", cfg.TopN)
		if cfg.Attribution != "" {
			fmt.Fprintf(out, "attribution: %s\n", cfg.Attribution)
		}
		fmt.Fprintf(out, "share_base_url: %s\n", cfg.ShareBaseURL)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if _, err := settings(); err != nil {
			return err
		}
		switch key {
		case "data_dir":
			cfg.DataDir = val
		case "store_backend":
			switch val {
			case store.BackendSQLite, store.BackendFile:
				if val != cfg.StoreBackend {
					// recomputed for the new backend on next load
					cfg.StorePath = ""
				}
				cfg.StoreBackend = val
			default:
				return fmt.Errorf("invalid store_backend: %s (use sqlite or file)", val)
			}
		case "store_path":
			cfg.StorePath = val
		case "store_quota":
			if val != "0" && val != "" {
				if _, err := humanize.ParseBytes(val); err != nil {
					return fmt.Errorf("invalid size for store_quota: %v", val)
				}
			}
			cfg.StoreQuota = val
		case "store_open_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for store_open_timeout_sec: %v", val)
			}
			cfg.StoreOpenTimeoutSec = i
		case "chunk_size":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for chunk_size: %v", val)
			}
			cfg.ChunkSize = i
		case "delimiter":
			if _, err := cfgpkg.ParseDelimiter(val); err != nil {
				return err
			}
			cfg.Delimiter = val
		case "top_n":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for top_n: %v", val)
			}
			cfg.TopN = i
		case "attribution":
			cfg.Attribution = val
		case "share_base_url":
			cfg.ShareBaseURL = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		success("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
