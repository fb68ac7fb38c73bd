package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/doubleup/internal/dictionary"
	"github.com/dukerupert/doubleup/internal/household"
	"github.com/dukerupert/doubleup/internal/model"
	"github.com/dukerupert/doubleup/internal/pipeline"
)

var profileCmd = &cobra.Command{
	Use:   "profile <cpsid>",
	Short: "Print the members of a household and their subunits",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireData(true, false); err != nil {
		return err
	}
	cb, err := dictionary.LoadCodebook(cfg.Data.Codebook)
	if err != nil {
		return err
	}

	_, households, err := pipeline.Load(cfg.Data.Extract, pipelineConfig(cfg).Schema, nil)
	if err != nil {
		return err
	}

	id := model.HouseholdID(args[0])
	for _, hh := range households {
		if hh.ID != id {
			continue
		}
		if err := household.Partition(hh); err != nil {
			return err
		}
		return household.Profile(cmd.OutOrStdout(), hh, cb)
	}
	return fmt.Errorf("household %s not found in %s", id, cfg.Data.Extract)
}
