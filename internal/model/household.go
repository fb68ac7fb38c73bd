package model

import "sort"

// SubunitID numbers a family subunit within its household, starting at 1.
type SubunitID int

// Unassigned marks a person not yet placed in a subunit.
const Unassigned SubunitID = -1

// Household owns the persons sharing a household id, in extract order. The
// first person is the householder and the reference for household-level
// fields.
type Household struct {
	ID      HouseholdID
	Persons []*Person

	Weight           float64
	ReplicateWeights []float64
	Threshold        float64
	PovertyPercent   float64

	NSubunits  int
	Allocation *Allocation

	// Partial figures exclude SNAP and medical expenses, the two resources
	// that can never be split between subunits.
	PartialResources      float64
	PartialPovertyPercent float64
	Subunits              []*Subunit
}

// Householder returns the first person of the household.
func (h *Household) Householder() *Person {
	return h.Persons[0]
}

// Unit returns the SPM unit fields of the householder.
func (h *Household) Unit() SPMUnit {
	return h.Householder().SPM
}

// UnitMembers returns the persons who share the householder's SPM unit, in
// extract order.
func (h *Household) UnitMembers() []*Person {
	unit := h.Householder().Unit
	var members []*Person
	for _, p := range h.Persons {
		if p.Unit == unit {
			members = append(members, p)
		}
	}
	return members
}

// Person returns the member with the given line number, or nil.
func (h *Household) Person(line LineNo) *Person {
	for _, p := range h.Persons {
		if p.Line == line {
			return p
		}
	}
	return nil
}

// DoublingUp reports whether the household's SPM unit holds more than one
// family subunit.
func (h *Household) DoublingUp() bool {
	return h.NSubunits > 1
}

// GroupSubunits builds the subunit list from the members' assignments. The
// result is ordered by id and members keep extract order.
func (h *Household) GroupSubunits() []*Subunit {
	byID := make(map[SubunitID]*Subunit)
	for _, p := range h.UnitMembers() {
		if p.Subunit == Unassigned {
			continue
		}
		s, ok := byID[p.Subunit]
		if !ok {
			s = &Subunit{ID: p.Subunit}
			byID[p.Subunit] = s
		}
		s.Members = append(s.Members, p)
	}
	subunits := make([]*Subunit, 0, len(byID))
	for _, s := range byID {
		subunits = append(subunits, s)
	}
	sort.Slice(subunits, func(i, j int) bool { return subunits[i].ID < subunits[j].ID })
	return subunits
}

// Subunit is a family subunit: an anchor adult with their partner and
// dependent children.
type Subunit struct {
	ID      SubunitID
	Members []*Person

	PartialResources float64
	Threshold        float64
	PovertyPercent   float64
}

// Lines returns the line numbers of the subunit members.
func (s *Subunit) Lines() []LineNo {
	lines := make([]LineNo, len(s.Members))
	for i, p := range s.Members {
		lines[i] = p.Line
	}
	return lines
}

// Counts returns the number of SPM adults and children in the subunit.
func (s *Subunit) Counts() (adults, children int) {
	for _, p := range s.Members {
		if p.IsSPMAdult() {
			adults++
		} else {
			children++
		}
	}
	return adults, children
}

// Allocation records how a doubling-up household's shared resources were
// split between its subunits.
type Allocation struct {
	Amounts   map[SubunitID]map[Resource]float64
	Ambiguous map[Resource]bool
}

// NewAllocation returns an allocation with every splittable resource set to
// zero for each subunit id 1..n.
func NewAllocation(n int) *Allocation {
	a := &Allocation{
		Amounts:   make(map[SubunitID]map[Resource]float64, n),
		Ambiguous: make(map[Resource]bool),
	}
	for id := SubunitID(1); id <= SubunitID(n); id++ {
		row := make(map[Resource]float64)
		for _, r := range SplittableResources() {
			row[r] = 0
		}
		a.Amounts[id] = row
	}
	return a
}

// Set assigns an amount of a resource to a subunit.
func (a *Allocation) Set(id SubunitID, r Resource, amount float64) {
	a.Amounts[id][r] = amount
}

// Add adds to a subunit's amount of a resource.
func (a *Allocation) Add(id SubunitID, r Resource, amount float64) {
	a.Amounts[id][r] += amount
}

// Amount returns a subunit's share of a resource.
func (a *Allocation) Amount(id SubunitID, r Resource) float64 {
	return a.Amounts[id][r]
}

// Total sums a resource across subunits.
func (a *Allocation) Total(r Resource) float64 {
	var total float64
	for _, row := range a.Amounts {
		total += row[r]
	}
	return total
}

// MarkAmbiguous flags a resource as impossible to split.
func (a *Allocation) MarkAmbiguous(r Resource) {
	a.Ambiguous[r] = true
}

// IsAmbiguous reports whether the resource could not be split.
func (a *Allocation) IsAmbiguous(r Resource) bool {
	return a.Ambiguous[r]
}

// AnyAmbiguous reports whether any resource could not be split.
func (a *Allocation) AnyAmbiguous() bool {
	for _, v := range a.Ambiguous {
		if v {
			return true
		}
	}
	return false
}

// AmbiguousResources lists the flagged resources in splitter order.
func (a *Allocation) AmbiguousResources() []Resource {
	var out []Resource
	for _, r := range SplittableResources() {
		if a.Ambiguous[r] {
			out = append(out, r)
		}
	}
	return out
}
