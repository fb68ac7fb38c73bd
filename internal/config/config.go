package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g.
// DOUBLEUP_DB_PATH for db.path.
const EnvPrefix = "DOUBLEUP"

// Config represents the complete doubleup configuration
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	DB      DBConfig      `mapstructure:"db"`
	Log     LogConfig     `mapstructure:"log"`
	Run     RunConfig     `mapstructure:"run"`
	Report  ReportConfig  `mapstructure:"report"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// DataConfig locates the extract and its dictionaries
type DataConfig struct {
	// Extract is the ASEC person-level CSV extract, optionally gzipped
	Extract string `mapstructure:"extract"`
	// Codebook is the compact IPUMS JSON dictionary
	Codebook string `mapstructure:"codebook"`
	// Occupations is the hierarchical industry -> occupation JSON file
	Occupations string `mapstructure:"occupations"`
	// ReplicateWeights loads the 160 person and household replicate weights
	ReplicateWeights bool `mapstructure:"replicate_weights"`
	// LinkableOnly drops persons without a CPSIDP (the ASEC oversample)
	LinkableOnly bool `mapstructure:"linkable_only"`
}

// DBConfig controls where run results are stored
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
}

// RunConfig controls the pipeline
type RunConfig struct {
	// Workers bounds the goroutines partitioning and splitting households
	Workers int `mapstructure:"workers"`
}

// ReportConfig controls aggregation and output
type ReportConfig struct {
	Population float64 `mapstructure:"population"`
	BinWidth   float64 `mapstructure:"bin_width"`
	MaxPercent float64 `mapstructure:"max_percent"`
	// Format is "text" or "yaml"
	Format string `mapstructure:"format"`
}

// ArchiveConfig configures publishing encrypted result databases to
// S3-compatible storage. Archiving is off unless a bucket is set.
type ArchiveConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Bucket     string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	Prefix     string `mapstructure:"prefix"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Passphrase string `mapstructure:"passphrase"`
}

// Enabled reports whether an archive bucket is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Data: DataConfig{
			LinkableOnly: true,
		},
		DB: DBConfig{
			Path: "doubleup.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Run: RunConfig{
			Workers: runtime.NumCPU(),
		},
		Report: ReportConfig{
			Population: 323.4e6,
			BinWidth:   100,
			MaxPercent: 1000,
			Format:     "text",
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "doubleup/",
		},
	}
}

// SetDefaults registers every key with viper so that environment overrides
// apply even when no config file sets them.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("data.extract", defaults.Data.Extract)
	viper.SetDefault("data.codebook", defaults.Data.Codebook)
	viper.SetDefault("data.occupations", defaults.Data.Occupations)
	viper.SetDefault("data.replicate_weights", defaults.Data.ReplicateWeights)
	viper.SetDefault("data.linkable_only", defaults.Data.LinkableOnly)

	viper.SetDefault("db.path", defaults.DB.Path)

	viper.SetDefault("log.level", defaults.Log.Level)

	viper.SetDefault("run.workers", defaults.Run.Workers)

	viper.SetDefault("report.population", defaults.Report.Population)
	viper.SetDefault("report.bin_width", defaults.Report.BinWidth)
	viper.SetDefault("report.max_percent", defaults.Report.MaxPercent)
	viper.SetDefault("report.format", defaults.Report.Format)

	viper.SetDefault("archive.endpoint", defaults.Archive.Endpoint)
	viper.SetDefault("archive.bucket", defaults.Archive.Bucket)
	viper.SetDefault("archive.region", defaults.Archive.Region)
	viper.SetDefault("archive.prefix", defaults.Archive.Prefix)
	viper.SetDefault("archive.access_key", defaults.Archive.AccessKey)
	viper.SetDefault("archive.secret_key", defaults.Archive.SecretKey)
	viper.SetDefault("archive.passphrase", defaults.Archive.Passphrase)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "doubleup")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".doubleup"
	}
	return filepath.Join(home, ".config", "doubleup")
}
