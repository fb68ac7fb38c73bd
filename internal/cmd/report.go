package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/doubleup/internal/model"
	"github.com/dukerupert/doubleup/internal/report"
	"github.com/dukerupert/doubleup/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show the summary of a saved run",
	Long:  `Show the summary of a saved run, the latest completed run by default.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsLimit int

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	runs := store.NewRunStore(db)

	var run *model.Run
	if len(args) == 1 {
		run, err = runs.GetByID(args[0])
	} else {
		run, err = runs.Latest()
	}
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no completed run found")
	}
	if run.Status != model.RunStatusCompleted {
		return fmt.Errorf("run %s is %s: %s", run.ID, run.Status, run.ErrorMessage)
	}

	data, err := runs.Summary(run.ID)
	if err != nil {
		return err
	}
	var s report.Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode summary of run %s: %w", run.ID, err)
	}

	// The stored allocation rows are the record; the summary only copies them.
	counts, err := store.NewResultStore(db).AmbiguityCounts(run.ID)
	if err != nil {
		return err
	}
	s.Ambiguity = report.AmbiguityTable(counts)
	return writeSummary(cmd.OutOrStdout(), s, cfg.Report.Format)
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := store.NewRunStore(db).List(runsLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXTRACT\tSTATUS\tHOUSEHOLDS\tDOUBLING UP\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Extract, r.Status,
			humanize.Comma(int64(r.Households)), humanize.Comma(int64(r.DoublingUp)),
			humanize.Time(r.StartedAt))
	}
	return tw.Flush()
}
