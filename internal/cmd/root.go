package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/doubleup/internal/asec"
	"github.com/dukerupert/doubleup/internal/config"
	"github.com/dukerupert/doubleup/internal/database"
	"github.com/dukerupert/doubleup/internal/logging"
	"github.com/dukerupert/doubleup/internal/pipeline"
	"github.com/dukerupert/doubleup/internal/report"
)

var rootCmd = &cobra.Command{
	Use:   "doubleup",
	Short: "Measure doubling up in the CPS ASEC",
	Long: `Doubleup splits the SPM resource units of a CPS ASEC extract into family
subunits, allocates shared resources between them and reports how many
households are doubling up and what living apart would do to their poverty.

Results of every run are kept in a local SQLite database.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// cfg is the validated configuration, set before any subcommand runs.
var cfg *config.Config

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/doubleup/config.yaml)")
	flags.String("db", "", "results database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("extract", "", "ASEC person extract (.csv or .csv.gz)")
	flags.String("codebook", "", "compact IPUMS JSON dictionary")
	flags.String("occupations", "", "industry to occupation JSON file")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("db.path", flags.Lookup("db"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("data.extract", flags.Lookup("extract"))
	_ = viper.BindPFlag("data.codebook", flags.Lookup("codebook"))
	_ = viper.BindPFlag("data.occupations", flags.Lookup("occupations"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g. DOUBLEUP_ARCHIVE_BUCKET for archive.bucket
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c
	logging.Setup(cfg.Log.Level, cmd.ErrOrStderr())
	return nil
}

func openDB() (*sql.DB, error) {
	return database.Open(cfg.DB.Path)
}

func pipelineConfig(c *config.Config) pipeline.Config {
	schema := asec.FullSchema()
	schema.ReplicateWeights = c.Data.ReplicateWeights
	schema.LinkableOnly = c.Data.LinkableOnly

	return pipeline.Config{
		Extract: c.Data.Extract,
		Schema:  schema,
		Workers: c.Run.Workers,
		Report: report.Options{
			Population: c.Report.Population,
			BinWidth:   c.Report.BinWidth,
			MaxPercent: c.Report.MaxPercent,
		},
	}
}

func writeSummary(w io.Writer, s report.Summary, format string) error {
	if format == "yaml" {
		return report.WriteYAML(w, s)
	}
	return report.Render(w, s)
}
