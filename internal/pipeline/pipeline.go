// Package pipeline runs an extract end to end: load, partition, split,
// apply poverty, summarize and persist.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/dukerupert/doubleup/internal/asec"
	"github.com/dukerupert/doubleup/internal/dictionary"
	"github.com/dukerupert/doubleup/internal/household"
	"github.com/dukerupert/doubleup/internal/model"
	"github.com/dukerupert/doubleup/internal/report"
	"github.com/dukerupert/doubleup/internal/spm"
	"github.com/dukerupert/doubleup/internal/store"
)

// Config selects the extract and how it is processed.
type Config struct {
	Extract string
	Schema  asec.Schema
	Workers int
	Report  report.Options
}

// Deps are the loaded dictionaries and stores a run needs.
type Deps struct {
	Occupations *dictionary.Occupations
	Runs        *store.RunStore
	Results     *store.ResultStore
}

// Result is a completed run.
type Result struct {
	Run        *model.Run
	Persons    []model.Person
	Households []*model.Household
	Summary    report.Summary
}

// Load reads the extract, annotates industries when occupations are given
// and groups persons into households. The households reference the returned
// persons.
func Load(path string, schema asec.Schema, occ *dictionary.Occupations) ([]model.Person, []*model.Household, error) {
	f, err := asec.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	persons, err := asec.Read(f, schema)
	if err != nil {
		return nil, nil, fmt.Errorf("read extract: %w", err)
	}
	if occ != nil {
		if err := occ.Annotate(persons); err != nil {
			return nil, nil, fmt.Errorf("annotate industries: %w", err)
		}
	}
	households, err := household.Index(persons)
	if err != nil {
		return nil, nil, fmt.Errorf("index households: %w", err)
	}
	return persons, households, nil
}

// Process partitions every household, splits the resources of those
// doubling up and applies poverty figures where the split is unambiguous.
func Process(ctx context.Context, households []*model.Household, workers int) error {
	start := time.Now()
	if err := household.PartitionAll(ctx, households, workers); err != nil {
		return err
	}
	slog.Debug("households partitioned", "households", len(households), "elapsed", time.Since(start))

	if err := spm.SplitAll(ctx, households, workers); err != nil {
		return err
	}
	for _, hh := range households {
		if !hh.DoublingUp() || hh.Allocation.AnyAmbiguous() {
			continue
		}
		if err := spm.ApplyPoverty(hh); err != nil {
			return err
		}
	}
	slog.Debug("resources split", "elapsed", time.Since(start))
	return nil
}

// Run executes the whole pipeline and records it. A failed run is kept with
// its error message.
func Run(ctx context.Context, cfg Config, deps Deps) (*Result, error) {
	run, err := deps.Runs.Create(filepath.Base(cfg.Extract))
	if err != nil {
		return nil, err
	}
	logger := slog.With("run", run.ID)
	logger.Info("run started", "extract", cfg.Extract)

	res, err := execute(ctx, cfg, deps, run)
	if err != nil {
		if ferr := deps.Runs.Fail(run.ID, err.Error()); ferr != nil {
			logger.Error("record run failure", "error", ferr)
		}
		return nil, err
	}
	logger.Info("run completed",
		"households", run.Households,
		"doubling_up", run.DoublingUp,
		"ambiguous", run.Ambiguous)
	return res, nil
}

func execute(ctx context.Context, cfg Config, deps Deps, run *model.Run) (*Result, error) {
	persons, households, err := Load(cfg.Extract, cfg.Schema, deps.Occupations)
	if err != nil {
		return nil, err
	}
	if err := Process(ctx, households, cfg.Workers); err != nil {
		return nil, err
	}

	opts := cfg.Report
	if deps.Occupations != nil {
		opts.Industries = deps.Occupations.Industries()
	}
	summary := report.Summarize(households, opts)

	if err := deps.Results.SaveHouseholds(run.ID, households); err != nil {
		return nil, fmt.Errorf("save households: %w", err)
	}
	var buf bytes.Buffer
	if err := report.WriteYAML(&buf, summary); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	run.Persons = len(persons)
	run.Households = summary.Households
	run.DoublingUp = summary.DoublingUp
	run.Ambiguous = summary.Ambiguous
	if err := deps.Runs.Finish(run, buf.Bytes()); err != nil {
		return nil, err
	}

	return &Result{Run: run, Persons: persons, Households: households, Summary: summary}, nil
}

// Audit runs the sanity checks on the published SPM unit figures and returns
// every finding combined. Use spm.Findings to list them.
func Audit(persons []model.Person, households []*model.Household) error {
	var errs error
	for _, hh := range households {
		errs = multierr.Append(errs, spm.CheckUnitCounts(hh))
		errs = multierr.Append(errs, spm.CheckResources(hh))
	}
	return multierr.Append(errs, spm.CheckThresholds(persons))
}
