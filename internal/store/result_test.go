package store

import (
	"testing"

	"github.com/dukerupert/doubleup/internal/model"
)

// splitHousehold is a doubling-up household with two subunits and a clean
// allocation.
func splitHousehold() *model.Household {
	head := &model.Person{PersonID: "a", Line: 1, Age: 45, Subunit: 1}
	child := &model.Person{PersonID: "b", Line: 3, Age: 10, Subunit: 1}
	grandma := &model.Person{PersonID: "c", Line: 4, Age: 75, Subunit: 2}

	alloc := model.NewAllocation(2)
	alloc.Set(1, model.HousingSubsidy, 2000)
	alloc.Set(1, model.StateTax, 1200)

	return &model.Household{
		ID:                    "h1",
		Persons:               []*model.Person{head, child, grandma},
		Weight:                1500,
		PovertyPercent:        140,
		NSubunits:             2,
		Allocation:            alloc,
		PartialResources:      58000,
		PartialPovertyPercent: 145,
		Subunits: []*model.Subunit{
			{ID: 1, Members: []*model.Person{head, child}, PartialResources: 43000, Threshold: 30000, PovertyPercent: 143},
			{ID: 2, Members: []*model.Person{grandma}, PartialResources: 15000, Threshold: 16000, PovertyPercent: 93.75},
		},
	}
}

func ambiguousHousehold() *model.Household {
	p1 := &model.Person{PersonID: "d", Line: 1, Age: 30, Subunit: 1}
	p2 := &model.Person{PersonID: "e", Line: 2, Age: 25, Subunit: 2}
	alloc := model.NewAllocation(2)
	alloc.MarkAmbiguous(model.ChildSupportPaid)
	alloc.MarkAmbiguous(model.FICA)
	return &model.Household{
		ID:         "h2",
		Persons:    []*model.Person{p1, p2},
		Weight:     900,
		NSubunits:  2,
		Allocation: alloc,
		Subunits: []*model.Subunit{
			{ID: 1, Members: []*model.Person{p1}},
			{ID: 2, Members: []*model.Person{p2}},
		},
	}
}

func singleHousehold() *model.Household {
	p := &model.Person{PersonID: "f", Line: 1, Age: 19, Subunit: 1}
	return &model.Household{
		ID:        "h3",
		Persons:   []*model.Person{p},
		Weight:    700,
		NSubunits: 1,
		Subunits:  []*model.Subunit{{ID: 1, Members: []*model.Person{p}}},
	}
}

func setupResultTest(t *testing.T) (*ResultStore, string) {
	t.Helper()
	db := setupTestDB(t)
	run, err := NewRunStore(db).Create("asec16.csv")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	rs := NewResultStore(db)
	if err := rs.SaveHouseholds(run.ID, []*model.Household{splitHousehold(), ambiguousHousehold(), singleHousehold()}); err != nil {
		t.Fatalf("save households: %v", err)
	}
	return rs, run.ID
}

func TestResultListHouseholds(t *testing.T) {
	rs, runID := setupResultTest(t)

	all, err := rs.ListHouseholds(runID, false)
	if err != nil {
		t.Fatalf("list households: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("households = %d, want 3", len(all))
	}

	doubled, err := rs.ListHouseholds(runID, true)
	if err != nil {
		t.Fatalf("list doubling up: %v", err)
	}
	if len(doubled) != 2 {
		t.Fatalf("doubling up = %d, want 2", len(doubled))
	}
	if doubled[0].ID != "h1" || doubled[0].Ambiguous {
		t.Errorf("first = %+v, want clean h1", doubled[0])
	}
	if doubled[0].PartialPovertyPercent == nil || *doubled[0].PartialPovertyPercent != 145 {
		t.Errorf("partial poverty = %v, want 145", doubled[0].PartialPovertyPercent)
	}
	if !doubled[1].Ambiguous || doubled[1].PartialResources != nil {
		t.Errorf("second = %+v, want ambiguous without partial figures", doubled[1])
	}
}

func TestResultGetHousehold(t *testing.T) {
	rs, runID := setupResultTest(t)

	h, err := rs.GetHousehold(runID, "h3")
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if h == nil || h.NSubunits != 1 || h.Weight != 700 {
		t.Errorf("household = %+v", h)
	}

	missing, err := rs.GetHousehold(runID, "nope")
	if err != nil {
		t.Fatalf("get missing household: %v", err)
	}
	if missing != nil {
		t.Errorf("household = %+v, want nil", missing)
	}
}

func TestResultListSubunits(t *testing.T) {
	rs, runID := setupResultTest(t)

	subunits, err := rs.ListSubunits(runID, "h1")
	if err != nil {
		t.Fatalf("list subunits: %v", err)
	}
	if len(subunits) != 2 {
		t.Fatalf("subunits = %d, want 2", len(subunits))
	}

	first := subunits[0]
	if len(first.Lines) != 2 || first.Lines[0] != 1 || first.Lines[1] != 3 {
		t.Errorf("lines = %v, want [1 3]", first.Lines)
	}
	if first.Allocation[model.HousingSubsidy] != 2000 {
		t.Errorf("housing = %v, want 2000", first.Allocation[model.HousingSubsidy])
	}
	if first.PovertyPercent == nil || *first.PovertyPercent != 143 {
		t.Errorf("poverty = %v, want 143", first.PovertyPercent)
	}
	if got := subunits[1].Allocation[model.HousingSubsidy]; got != 0 {
		t.Errorf("grandparent housing = %v, want 0", got)
	}

	ambiguous, err := rs.ListSubunits(runID, "h2")
	if err != nil {
		t.Fatalf("list subunits: %v", err)
	}
	if _, ok := ambiguous[0].Allocation[model.FICA]; ok {
		t.Error("ambiguous resource should not be stored as an allocation")
	}
	if ambiguous[0].Threshold != nil {
		t.Error("ambiguous household subunit should have no threshold")
	}
}

func TestResultAmbiguityCounts(t *testing.T) {
	rs, runID := setupResultTest(t)

	counts, err := rs.AmbiguityCounts(runID)
	if err != nil {
		t.Fatalf("ambiguity counts: %v", err)
	}
	if counts[model.ChildSupportPaid] != 1 || counts[model.FICA] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if len(counts) != 2 {
		t.Errorf("resources = %d, want 2", len(counts))
	}
}
