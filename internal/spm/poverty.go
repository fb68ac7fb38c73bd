package spm

import (
	"errors"
	"fmt"

	"github.com/dukerupert/doubleup/internal/model"
)

var (
	ErrNotSplit  = errors.New("household resources have not been split")
	ErrAmbiguous = errors.New("household allocation has ambiguous resources")
)

// ApplyPoverty computes poverty figures that leave out SNAP and medical
// expenses, for the household as a whole and for each subunit as if it lived
// on its own. The household must carry an unambiguous allocation.
func ApplyPoverty(hh *model.Household) error {
	if hh.Allocation == nil {
		return fmt.Errorf("apply poverty to household %s: %w", hh.ID, ErrNotSplit)
	}
	if hh.Allocation.AnyAmbiguous() {
		return fmt.Errorf("apply poverty to household %s: %w", hh.ID, ErrAmbiguous)
	}

	unit := hh.Unit()
	hh.PartialResources = unit.TotalResources - unit.Amount(model.SNAP) + unit.Amount(model.MedicalExpense)
	hh.PartialPovertyPercent = hh.PartialResources / unit.Threshold * 100

	unitScale := FamilyScaling(unit.NAdults, unit.NChildren)
	for _, s := range hh.Subunits {
		s.PartialResources = subunitResources(s, hh.Allocation)
		adults, children := s.Counts()
		s.Threshold = unit.Threshold / unitScale * FamilyScaling(adults, children)
		s.PovertyPercent = s.PartialResources / s.Threshold * 100
	}
	return nil
}

func subunitResources(s *model.Subunit, alloc *model.Allocation) float64 {
	var total float64
	for _, p := range s.Members {
		if p.Age >= TaxAge {
			total += p.TotalIncome()
		}
	}
	for _, r := range model.SplittableResources() {
		if r.IsBenefit() {
			total += alloc.Amount(s.ID, r)
		} else {
			total -= alloc.Amount(s.ID, r)
		}
	}
	return total
}
