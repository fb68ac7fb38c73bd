package spm

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"

	"github.com/dukerupert/doubleup/internal/model"
)

// UnknownCounty is the COUNTY code for persons whose county is suppressed.
const UnknownCounty = "0"

// ErrAudit is wrapped by every audit finding.
var ErrAudit = errors.New("audit finding")

// Finding describes one disagreement between the extract's published SPM
// figures and the figures recomputed from its rows.
type Finding struct {
	Check   string
	Subject string
	Detail  string
}

func (f *Finding) Error() string {
	return fmt.Sprintf("%s %s: %s", f.Check, f.Subject, f.Detail)
}

func (f *Finding) Unwrap() error {
	return ErrAudit
}

// Findings unpacks the individual findings from an audit error.
func Findings(err error) []*Finding {
	var out []*Finding
	for _, e := range multierr.Errors(err) {
		var f *Finding
		if errors.As(e, &f) {
			out = append(out, f)
		}
	}
	return out
}

// CheckUnitCounts recounts the householder's SPM unit and compares the
// person, adult and child counts with the published ones.
func CheckUnitCounts(hh *model.Household) error {
	unit := hh.Unit()
	members := hh.UnitMembers()
	var adults int
	for _, p := range members {
		if p.IsSPMAdult() {
			adults++
		}
	}
	children := len(members) - adults

	subject := "household " + string(hh.ID)
	var err error
	if len(members) != unit.NPersons {
		err = multierr.Append(err, &Finding{"unit-counts", subject, fmt.Sprintf("%d members, SPMNPERS=%d", len(members), unit.NPersons)})
	}
	if unit.NPersons != unit.NAdults+unit.NChildren {
		err = multierr.Append(err, &Finding{"unit-counts", subject, fmt.Sprintf("SPMNPERS=%d but SPMNADULTS+SPMNCHILD=%d", unit.NPersons, unit.NAdults+unit.NChildren)})
	}
	if adults != unit.NAdults {
		err = multierr.Append(err, &Finding{"unit-counts", subject, fmt.Sprintf("%d adults, SPMNADULTS=%d", adults, unit.NAdults)})
	}
	if children != unit.NChildren {
		err = multierr.Append(err, &Finding{"unit-counts", subject, fmt.Sprintf("%d children, SPMNCHILD=%d", children, unit.NChildren)})
	}
	return err
}

// UnitResources recomputes the householder's SPM unit resources: incomes of
// members aged 15 and over plus benefits minus expenses.
func UnitResources(hh *model.Household) float64 {
	unit := hh.Unit()
	var total float64
	for _, p := range hh.UnitMembers() {
		if p.Age >= TaxAge {
			total += p.TotalIncome()
		}
	}
	for _, r := range model.Benefits {
		total += unit.Amount(r)
	}
	for _, r := range model.Expenses {
		total -= unit.Amount(r)
	}
	return total
}

// CheckResources compares the recomputed unit resources with SPMTOTRES.
func CheckResources(hh *model.Household) error {
	got, want := UnitResources(hh), hh.Unit().TotalResources
	if math.Abs(got-want) > Tolerance {
		return &Finding{"resources", "household " + string(hh.ID), fmt.Sprintf("recomputed %.2f, SPMTOTRES=%.2f (off by %.2f)", got, want, got-want)}
	}
	return nil
}

type thresholdCell struct {
	county string
	tenure string
}

// CheckThresholds verifies that, with the family scaling undone, every
// county and tenure combination has a single one-adult threshold, and that
// scaling it back reproduces each person's threshold within a dollar.
// Persons in an unknown county are skipped.
func CheckThresholds(persons []model.Person) error {
	base := make(map[thresholdCell]map[float64]bool)
	for i := range persons {
		p := &persons[i]
		if p.County == UnknownCounty {
			continue
		}
		cell := thresholdCell{p.County, p.Tenure}
		if base[cell] == nil {
			base[cell] = make(map[float64]bool)
		}
		base[cell][unscaledThreshold(p)] = true
	}

	cells := make([]thresholdCell, 0, len(base))
	for c := range base {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].county != cells[j].county {
			return cells[i].county < cells[j].county
		}
		return cells[i].tenure < cells[j].tenure
	})

	var err error
	unique := make(map[thresholdCell]float64, len(cells))
	for _, c := range cells {
		subject := fmt.Sprintf("county %s tenure %s", c.county, c.tenure)
		if len(base[c]) != 1 {
			err = multierr.Append(err, &Finding{"thresholds", subject, fmt.Sprintf("%d distinct one-adult thresholds", len(base[c]))})
			continue
		}
		for v := range base[c] {
			unique[c] = v
		}
	}

	for i := range persons {
		p := &persons[i]
		v, ok := unique[thresholdCell{p.County, p.Tenure}]
		if p.County == UnknownCounty || !ok {
			continue
		}
		want := v * FamilyScaling(p.SPM.NAdults, p.SPM.NChildren)
		if math.Abs(want-p.SPM.Threshold) >= 1 {
			err = multierr.Append(err, &Finding{"thresholds", "person " + p.PersonID, fmt.Sprintf("rescaled %.2f, SPMTHRESH=%.2f", want, p.SPM.Threshold)})
		}
	}
	return err
}

func unscaledThreshold(p *model.Person) float64 {
	v := p.SPM.Threshold / FamilyScaling(p.SPM.NAdults, p.SPM.NChildren)
	return math.Round(v*100) / 100
}
