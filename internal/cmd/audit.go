package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dukerupert/doubleup/internal/pipeline"
	"github.com/dukerupert/doubleup/internal/spm"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the extract's published SPM figures against its rows",
	Long: `Recount every SPM unit, recompute its total resources and check that the
poverty thresholds are consistent within each county and tenure.

Findings are printed as warnings. Use --strict to exit non-zero when there
are any.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

var auditStrict bool

func init() {
	auditCmd.Flags().BoolVar(&auditStrict, "strict", false, "fail when any check has findings")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireData(false, false); err != nil {
		return err
	}
	persons, households, err := pipeline.Load(cfg.Data.Extract, pipelineConfig(cfg).Schema, nil)
	if err != nil {
		return err
	}

	findings := spm.Findings(pipeline.Audit(persons, households))
	out := cmd.OutOrStdout()
	for _, f := range findings {
		fmt.Fprintf(out, "%-12s %-28s %s\n", f.Check, f.Subject, f.Detail)
	}
	fmt.Fprintf(out, "%s findings in %s households\n",
		humanize.Comma(int64(len(findings))), humanize.Comma(int64(len(households))))

	if auditStrict && len(findings) > 0 {
		return fmt.Errorf("audit: %d findings", len(findings))
	}
	return nil
}
