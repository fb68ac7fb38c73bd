package spm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/doubleup/internal/model"
)

// Tolerance is the largest difference, in dollars, accepted between a
// figure and the total it should reproduce.
const Tolerance = 10.0

// Age limits used by the allocation rules.
const (
	TaxAge       = 15 // persons whose income and taxes count toward the unit
	LunchMinAge  = 5
	LunchMaxAge  = 18
	ChildcareAge = 18 // children younger than this make a subunit eligible for childcare
)

var (
	ErrNotDoublingUp          = errors.New("household has fewer than two subunits")
	ErrInconsistentAllocation = errors.New("allocated amounts do not add up to the unit total")
)

// InconsistencyError reports a resource whose allocation drifted from the
// unit total. It means an allocation rule is wrong, not that the data is.
type InconsistencyError struct {
	Household model.HouseholdID
	Resource  model.Resource
	Allocated float64
	Total     float64
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("household %s: %s allocated %.2f of %.2f: %v",
		e.Household, e.Resource, e.Allocated, e.Total, ErrInconsistentAllocation)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrInconsistentAllocation
}

// Split allocates the household's splittable SPM resources to its subunits.
// Resources that cannot be attributed to a single subunit are marked
// ambiguous on the returned allocation; that is an expected outcome, not an
// error. The household must already be partitioned into two or more
// subunits.
func Split(hh *model.Household) (*model.Allocation, error) {
	if hh.NSubunits < 2 || len(hh.Subunits) != hh.NSubunits {
		return nil, fmt.Errorf("split household %s: %w", hh.ID, ErrNotDoublingUp)
	}

	unit := hh.Unit()
	alloc := model.NewAllocation(hh.NSubunits)

	for _, s := range hh.Subunits {
		for _, p := range s.Members {
			if p.Age < TaxAge {
				continue
			}
			alloc.Add(s.ID, model.EITC, p.EITC)
			alloc.Add(s.ID, model.StateTax, p.StateTax)
			alloc.Add(s.ID, model.FederalTaxBeforeCredit, p.FederalTaxAfterCredit+p.EITC)
		}
	}

	splitFICA(hh, unit, alloc)

	head := hh.Householder().Subunit
	alloc.Set(head, model.HousingSubsidy, unit.Amount(model.HousingSubsidy))
	alloc.Set(head, model.EnergySubsidy, unit.Amount(model.EnergySubsidy))

	if total := unit.Amount(model.SchoolLunch); total > 0 {
		assignSole(hh, alloc, model.SchoolLunch, total, func(p *model.Person) bool {
			return p.Age >= LunchMinAge && p.Age <= LunchMaxAge
		})
	}

	if total := unit.Amount(model.WIC); total > 0 {
		assignSole(hh, alloc, model.WIC, total, func(p *model.Person) bool {
			return p.GotWIC
		})
	}

	if unit.Amount(model.WorkChildcare) > 0 {
		splitWorkChildcare(hh, unit, alloc)
	}

	// Nothing on record says who pays child support.
	if unit.Amount(model.ChildSupportPaid) > 0 {
		alloc.MarkAmbiguous(model.ChildSupportPaid)
	}

	if err := verify(hh, unit, alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

// splitFICA attributes payroll tax to the subunits of the persons who paid
// it, provided the individual amounts reproduce the unit total.
func splitFICA(hh *model.Household, unit model.SPMUnit, alloc *model.Allocation) {
	var individual float64
	for _, p := range hh.UnitMembers() {
		if p.Age >= TaxAge {
			individual += p.FICA
		}
	}
	if math.Abs(unit.Amount(model.FICA)-individual) >= Tolerance {
		alloc.MarkAmbiguous(model.FICA)
		return
	}
	for _, s := range hh.Subunits {
		for _, p := range s.Members {
			if p.Age >= TaxAge {
				alloc.Add(s.ID, model.FICA, p.FICA)
			}
		}
	}
}

// splitWorkChildcare handles the capped work and childcare expense. The
// childcare part needs exactly one subunit with a worker and a child; the
// work part is split only when the childcare part was.
func splitWorkChildcare(hh *model.Household, unit model.SPMUnit, alloc *model.Allocation) {
	capped := unit.Amount(model.WorkChildcare)
	if math.Abs(capped-unit.WorkExpense-unit.ChildcareExpense) > Tolerance {
		alloc.MarkAmbiguous(model.WorkChildcare)
		return
	}

	if unit.ChildcareExpense > 0 {
		var candidates []*model.Subunit
		for _, s := range hh.Subunits {
			if hasMember(s, func(p *model.Person) bool { return p.WorkedLastYear }) &&
				hasMember(s, func(p *model.Person) bool { return p.Age < ChildcareAge }) {
				candidates = append(candidates, s)
			}
		}
		if len(candidates) != 1 {
			alloc.MarkAmbiguous(model.WorkChildcare)
			return
		}
		alloc.Set(candidates[0].ID, model.WorkChildcare, unit.ChildcareExpense)
	}

	for _, s := range hh.Subunits {
		for _, p := range s.Members {
			if p.WorkExpense != nil {
				alloc.Add(s.ID, model.WorkChildcare, *p.WorkExpense)
			}
		}
	}
}

// assignSole gives the whole amount to the only subunit with a member
// matching eligible, or marks the resource ambiguous.
func assignSole(hh *model.Household, alloc *model.Allocation, r model.Resource, total float64, eligible func(*model.Person) bool) {
	var candidates []*model.Subunit
	for _, s := range hh.Subunits {
		if hasMember(s, eligible) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) != 1 {
		alloc.MarkAmbiguous(r)
		return
	}
	alloc.Set(candidates[0].ID, r, total)
}

func hasMember(s *model.Subunit, match func(*model.Person) bool) bool {
	for _, p := range s.Members {
		if match(p) {
			return true
		}
	}
	return false
}

func verify(hh *model.Household, unit model.SPMUnit, alloc *model.Allocation) error {
	for _, r := range model.SplittableResources() {
		if alloc.IsAmbiguous(r) {
			continue
		}
		allocated, total := alloc.Total(r), unit.Amount(r)
		if math.Abs(allocated-total) >= Tolerance {
			return &InconsistencyError{Household: hh.ID, Resource: r, Allocated: allocated, Total: total}
		}
	}
	return nil
}

// SplitAll splits every doubling-up household using up to workers goroutines
// and stores each allocation on its household. Other households are left
// untouched.
func SplitAll(ctx context.Context, households []*model.Household, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, hh := range households {
		if !hh.DoublingUp() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			alloc, err := Split(hh)
			if err != nil {
				return err
			}
			hh.Allocation = alloc
			return nil
		})
	}
	return g.Wait()
}
