package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/enrolstat/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory holding config and data.
const DirName = ".enrolstat"

// Global configuration structure.
type Global struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// Storage
	StoreBackend        string `mapstructure:"store_backend" yaml:"store_backend"`
	StorePath           string `mapstructure:"store_path" yaml:"store_path"`
	StoreQuota          string `mapstructure:"store_quota" yaml:"store_quota"`
	StoreOpenTimeoutSec int    `mapstructure:"store_open_timeout_sec" yaml:"store_open_timeout_sec"`

	// Ingest
	ChunkSize int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`

	// Output and sharing
	TopN         int    `mapstructure:"top_n" yaml:"top_n"`
	Attribution  string `mapstructure:"attribution" yaml:"attribution"`
	ShareBaseURL string `mapstructure:"share_base_url" yaml:"share_base_url"`
}

// QuotaBytes parses StoreQuota ("50MB", "1GiB"); empty or "0" disables the quota.
func (c *Global) QuotaBytes() (int64, error) {
	if c.StoreQuota == "" || c.StoreQuota == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.StoreQuota)
	if err != nil {
		return 0, fmt.Errorf("parse store_quota %q: %w", c.StoreQuota, err)
	}
	return int64(n), nil
}

// OpenTimeout returns the store open timeout.
func (c *Global) OpenTimeout() time.Duration {
	if c.StoreOpenTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.StoreOpenTimeoutSec) * time.Second
}

// DelimiterRune returns the configured delimiter, or 0 to sniff. "\t" and
// "tab" both mean a tab.
func (c *Global) DelimiterRune() (rune, error) {
	return ParseDelimiter(c.Delimiter)
}

// ParseDelimiter converts a flag or config value to a delimiter rune.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", "auto":
		return 0, nil
	case "\\t", "\t", "tab":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r[0], nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.enrolstat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, DirName)
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("ENROLSTAT")
	v.AutomaticEnv()

	v.SetDefault("store_backend", "sqlite")
	v.SetDefault("store_quota", "")
	v.SetDefault("store_open_timeout_sec", 10)
	v.SetDefault("chunk_size", 5000)
	v.SetDefault("delimiter", "")
	v.SetDefault("top_n", 10)
	v.SetDefault("attribution", "")
	v.SetDefault("share_base_url", "https://enrolstat.local/view")

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir := filepath.Join(home, DirName)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(home, DirName)
	}
	if c.DataDir, err = utils.ExpandHome(c.DataDir); err != nil {
		return nil, err
	}
	if c.StorePath == "" {
		if c.StoreBackend == "file" {
			c.StorePath = filepath.Join(c.DataDir, "datasets")
		} else {
			c.StorePath = filepath.Join(c.DataDir, "enrolstat.db")
		}
	}
	if c.StorePath, err = utils.ExpandHome(c.StorePath); err != nil {
		return nil, err
	}
	return &c, nil
}
