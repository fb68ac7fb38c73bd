package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/doubleup/internal/dictionary"
	"github.com/dukerupert/doubleup/internal/pipeline"
	"github.com/dukerupert/doubleup/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over an extract",
	Long: `Read the extract, partition every household into family subunits, split
the resources of households that are doubling up, and print the summary.

The run and its per-household results are saved to the results database.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runPublish bool

func init() {
	runCmd.Flags().Int("workers", 0, "households processed in parallel (default: number of CPUs)")
	runCmd.Flags().String("format", "", "summary format (text, yaml)")
	runCmd.Flags().Bool("replicate-weights", false, "load the 160 replicate weights and report standard errors for the doubling-up and poverty shares")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "publish an encrypted archive after the run")

	_ = viper.BindPFlag("run.workers", runCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("report.format", runCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("data.replicate_weights", runCmd.Flags().Lookup("replicate-weights"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireData(false, true); err != nil {
		return err
	}
	occ, err := dictionary.LoadOccupations(cfg.Data.Occupations)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := pipeline.Run(cmd.Context(), pipelineConfig(cfg), pipeline.Deps{
		Occupations: occ,
		Runs:        store.NewRunStore(db),
		Results:     store.NewResultStore(db),
	})
	if err != nil {
		return err
	}

	if err := writeSummary(cmd.OutOrStdout(), res.Summary, cfg.Report.Format); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "run %s saved to %s\n", res.Run.ID, cfg.DB.Path)

	if !runPublish {
		return nil
	}
	pub, err := newPublisher(db)
	if err != nil {
		return err
	}
	a, err := pub.Publish(cmd.Context(), res.Run.ID)
	if err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	slog.Info("archive uploaded", "key", a.S3Key)
	return nil
}
