package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dukerupert/doubleup/internal/model"
	"github.com/dukerupert/doubleup/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <run-id|latest> [cpsid]",
	Short: "Show the stored results of a run",
	Long: `Without a household id, list the households of a run that are doubling up.
With one, print the household's subunits, their members and the resources
allocated to each.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

var showAll bool

func init() {
	showCmd.Flags().BoolVar(&showAll, "all", false, "list every household, not only those doubling up")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs := store.NewRunStore(db)
	var run *model.Run
	if args[0] == "latest" {
		run, err = runs.Latest()
	} else {
		run, err = runs.GetByID(args[0])
	}
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	results := store.NewResultStore(db)
	if len(args) == 1 {
		households, err := results.ListHouseholds(run.ID, !showAll)
		if err != nil {
			return err
		}
		return writeHouseholds(cmd.OutOrStdout(), households)
	}

	id := model.HouseholdID(args[1])
	hh, err := results.GetHousehold(run.ID, id)
	if err != nil {
		return err
	}
	if hh == nil {
		return fmt.Errorf("household %s not in run %s", id, run.ID)
	}
	subunits, err := results.ListSubunits(run.ID, id)
	if err != nil {
		return err
	}
	return writeHousehold(cmd.OutOrStdout(), hh, subunits)
}

func writeHouseholds(w io.Writer, households []model.HouseholdResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CPSID\tSUBUNITS\tWEIGHT\tPOVERTY %\tPARTIAL %\tAMBIGUOUS")
	for _, h := range households {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%t\n",
			h.ID, h.NSubunits, humanize.Commaf(h.Weight), humanize.FtoaWithDigits(h.PovertyPercent, 1),
			optional(h.PartialPovertyPercent), h.Ambiguous)
	}
	return tw.Flush()
}

func writeHousehold(w io.Writer, h *model.HouseholdResult, subunits []model.SubunitResult) error {
	fmt.Fprintf(w, "household %s: %d subunits, %s%% of poverty line", h.ID, h.NSubunits, humanize.FtoaWithDigits(h.PovertyPercent, 1))
	if h.PartialPovertyPercent != nil {
		fmt.Fprintf(w, ", %s%% without SNAP and medical expenses", humanize.FtoaWithDigits(*h.PartialPovertyPercent, 1))
	}
	if h.Ambiguous {
		fmt.Fprint(w, ", ambiguous")
	}
	fmt.Fprintln(w)

	for _, su := range subunits {
		lines := make([]string, len(su.Lines))
		for i, l := range su.Lines {
			lines[i] = fmt.Sprint(l)
		}
		fmt.Fprintf(w, "subunit %d: lines %s", su.ID, strings.Join(lines, ", "))
		if su.PovertyPercent != nil {
			fmt.Fprintf(w, "; resources $%s, threshold $%s, %s%% of poverty line",
				humanize.Commaf(*su.PartialResources), humanize.Commaf(*su.Threshold),
				humanize.FtoaWithDigits(*su.PovertyPercent, 1))
		}
		fmt.Fprintln(w)

		for _, r := range model.SplittableResources() {
			amount, ok := su.Allocation[r]
			if !ok || amount == 0 {
				continue
			}
			sign := "-"
			if r.IsBenefit() {
				sign = "+"
			}
			fmt.Fprintf(w, "  %s %s$%s %s\n", r, sign, humanize.Commaf(amount), r.Label())
		}
	}
	return nil
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.FtoaWithDigits(*v, 1)
}
