package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukerupert/doubleup/internal/asec"
	"github.com/dukerupert/doubleup/internal/database"
	"github.com/dukerupert/doubleup/internal/dictionary"
	"github.com/dukerupert/doubleup/internal/model"
	"github.com/dukerupert/doubleup/internal/report"
	"github.com/dukerupert/doubleup/internal/spm"
	"github.com/dukerupert/doubleup/internal/store"
)

var testSchema = asec.Schema{Occupation: true, Geography: true, LinkableOnly: true}

const occupationsJSON = `{"Service": {"4020": "Cooks"}, "Sales": {"4700": "Retail supervisors"}}`

// threeGenerationUnit is shared by every row of household h1; the figures
// agree with the person rows.
var threeGenerationUnit = map[string]string{
	"CPSID": "h1", "SPMFAMUNIT": "1", "COUNTY": "1001", "SPMMORT": "1",
	"SPMLUNCH": "500", "SPMCAPHOUS": "2000", "SPMHEAT": "300", "SPMSNAP": "1000",
	"SPMMEDXPNS": "2500", "SPMCAPXPNS": "1700", "SPMSTTAX": "1200", "SPMFICA": "3765",
	"SPMFEDTAXAC": "2300", "SPMWKXPNS": "500", "SPMCHXPNS": "1200",
	"SPMTOTRES": "57335", "SPMTHRESH": "40000",
	"SPMNADULTS": "3", "SPMNCHILD": "1", "SPMNPERS": "4",
	"ASECWT": "1000", "ASECWTH": "1000", "WKXPNS": "9999",
}

func row(base map[string]string, fields map[string]string) map[string]string {
	r := make(map[string]string, len(base)+len(fields))
	for k, v := range base {
		r[k] = v
	}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func testRows() []map[string]string {
	return []map[string]string{
		row(threeGenerationUnit, map[string]string{"CPSIDP": "p1", "LINENO": "1", "AGE": "45", "RELATE": "101",
			"ASPOUSE": "2", "PELNMOM": "4", "WORKLY": "2", "STATAXAC": "1000", "FEDTAXAC": "2000", "FICA": "3000",
			"WKXPNS": "500", "INCWAGE": "40000", "OCCLY": "4020"}),
		row(threeGenerationUnit, map[string]string{"CPSIDP": "p2", "LINENO": "2", "AGE": "43", "RELATE": "201",
			"ASPOUSE": "1", "WORKLY": "2", "STATAXAC": "200", "FEDTAXAC": "300", "FICA": "765",
			"INCWAGE": "10000", "OCCLY": "4700"}),
		row(threeGenerationUnit, map[string]string{"CPSIDP": "p3", "LINENO": "3", "AGE": "10", "RELATE": "301",
			"PELNMOM": "2", "PELNDAD": "1"}),
		row(threeGenerationUnit, map[string]string{"CPSIDP": "p4", "LINENO": "4", "AGE": "75", "RELATE": "601",
			"INCSS": "15000"}),
		{"CPSID": "h2", "CPSIDP": "p5", "LINENO": "1", "SPMFAMUNIT": "1", "AGE": "30", "RELATE": "101",
			"INCWAGE": "20000", "SPMTOTRES": "20000", "SPMTHRESH": "15000", "SPMNADULTS": "1", "SPMNPERS": "1",
			"ASECWT": "1500", "ASECWTH": "1500", "OCCLY": "4020"},
		// ASEC oversample, dropped as unlinkable
		{"CPSID": "h2", "CPSIDP": "0", "LINENO": "2", "SPMFAMUNIT": "1", "AGE": "28", "OCCLY": "bogus"},
	}
}

func writeExtract(t *testing.T, rows []map[string]string) string {
	t.Helper()
	return writeExtractFor(t, testSchema, rows)
}

func writeExtractFor(t *testing.T, schema asec.Schema, rows []map[string]string) string {
	t.Helper()
	cols := schema.Columns()
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, ","))
	sb.WriteString("\n")
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := r[c]; ok {
				vals[i] = v
			} else {
				vals[i] = "0"
			}
		}
		sb.WriteString(strings.Join(vals, ","))
		sb.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "asec.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write extract: %v", err)
	}
	return path
}

func setupDeps(t *testing.T) Deps {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	occ, err := dictionary.ReadOccupations(strings.NewReader(occupationsJSON))
	if err != nil {
		t.Fatalf("read occupations: %v", err)
	}
	return Deps{Occupations: occ, Runs: store.NewRunStore(db), Results: store.NewResultStore(db)}
}

func testConfig(path string) Config {
	return Config{Extract: path, Schema: testSchema, Workers: 2, Report: report.DefaultOptions()}
}

func TestLoad(t *testing.T) {
	occ, err := dictionary.ReadOccupations(strings.NewReader(occupationsJSON))
	if err != nil {
		t.Fatalf("read occupations: %v", err)
	}
	persons, households, err := Load(writeExtract(t, testRows()), testSchema, occ)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(persons) != 5 {
		t.Errorf("persons = %d, want 5", len(persons))
	}
	if len(households) != 2 || households[0].ID != "h1" || households[1].ID != "h2" {
		t.Fatalf("households = %v", households)
	}
	if persons[1].IndustryLastYear != "Sales" {
		t.Errorf("industry = %q, want Sales", persons[1].IndustryLastYear)
	}
}

func TestLoadKeepsOversample(t *testing.T) {
	schema := testSchema
	schema.LinkableOnly = false
	single := map[string]string{
		"CPSID": "0", "CPSIDP": "0", "LINENO": "1", "SPMFAMUNIT": "1", "AGE": "40", "RELATE": "101",
		"SPMTHRESH": "15000", "SPMNADULTS": "1", "SPMNPERS": "1", "ASECWT": "900", "ASECWTH": "900", "WKXPNS": "9999",
	}
	rows := []map[string]string{
		row(single, map[string]string{"SERIAL": "80001"}),
		row(single, map[string]string{"SERIAL": "80002"}),
		row(threeGenerationUnit, map[string]string{"CPSIDP": "p1", "LINENO": "1", "AGE": "45", "RELATE": "101", "SERIAL": "80003"}),
	}

	_, households, err := Load(writeExtractFor(t, schema, rows), schema, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(households) != 3 {
		t.Fatalf("households = %d, want 3", len(households))
	}
	if households[0].ID != "S80001" || households[1].ID != "S80002" || households[2].ID != "h1" {
		t.Errorf("household ids = %s, %s, %s", households[0].ID, households[1].ID, households[2].ID)
	}
	if err := Process(context.Background(), households, 2); err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, hh := range households {
		if hh.NSubunits != 1 {
			t.Errorf("household %s subunits = %d, want 1", hh.ID, hh.NSubunits)
		}
	}
}

func TestRun(t *testing.T) {
	deps := setupDeps(t)

	res, err := Run(context.Background(), testConfig(writeExtract(t, testRows())), deps)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Run.Status != model.RunStatusCompleted {
		t.Errorf("status = %q, want completed", res.Run.Status)
	}
	if res.Run.Persons != 5 || res.Run.Households != 2 || res.Run.DoublingUp != 1 || res.Run.Ambiguous != 0 {
		t.Errorf("run counts = %+v", res.Run)
	}
	if res.Summary.Impact.Households != 1 || res.Summary.Impact.Subunits != 2 {
		t.Errorf("impact = %+v, want 1 household with 2 subunits", res.Summary.Impact)
	}

	h1 := res.Households[0]
	if h1.NSubunits != 2 || h1.Allocation == nil || h1.Allocation.AnyAmbiguous() {
		t.Fatalf("h1 = %d subunits, allocation %+v", h1.NSubunits, h1.Allocation)
	}
	if math.Abs(h1.PartialResources-58835) > 1e-6 {
		t.Errorf("partial resources = %v, want 58835", h1.PartialResources)
	}

	stored, err := deps.Results.ListHouseholds(res.Run.ID, true)
	if err != nil {
		t.Fatalf("list households: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != "h1" {
		t.Fatalf("stored doubling up = %+v", stored)
	}
	if stored[0].PartialPovertyPercent == nil || math.Abs(*stored[0].PartialPovertyPercent-147.0875) > 1e-6 {
		t.Errorf("stored partial poverty = %v, want 147.0875", stored[0].PartialPovertyPercent)
	}

	summary, err := deps.Runs.Summary(res.Run.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(string(summary), "doubling_up: 1") {
		t.Errorf("stored summary = %q", summary)
	}

	var industries []string
	for _, seg := range res.Summary.Demographics.Industries {
		industries = append(industries, seg.Name)
	}
	if len(industries) != 2 || industries[0] != "Service" || industries[1] != "Sales" {
		t.Errorf("demographic industries = %v, want occupation file order", industries)
	}
}

func TestRunFailureRecorded(t *testing.T) {
	deps := setupDeps(t)
	rows := testRows()
	rows[2]["OCCLY"] = "1234"

	_, err := Run(context.Background(), testConfig(writeExtract(t, rows)), deps)
	if !errors.Is(err, dictionary.ErrUnknownCode) {
		t.Fatalf("err = %v, want ErrUnknownCode", err)
	}

	runs, err := deps.Runs.List(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunStatusFailed {
		t.Fatalf("runs = %+v, want one failed run", runs)
	}
	if !strings.Contains(runs[0].ErrorMessage, "person p3") {
		t.Errorf("error message = %q, want offending person", runs[0].ErrorMessage)
	}
}

func TestRunDanglingLink(t *testing.T) {
	deps := setupDeps(t)
	rows := testRows()
	rows[2]["PELNDAD"] = "9"

	_, err := Run(context.Background(), testConfig(writeExtract(t, rows)), deps)
	if err == nil || !strings.Contains(err.Error(), "household h1") {
		t.Errorf("err = %v, want dangling link in household h1", err)
	}
}

func TestAudit(t *testing.T) {
	occ, err := dictionary.ReadOccupations(strings.NewReader(occupationsJSON))
	if err != nil {
		t.Fatalf("read occupations: %v", err)
	}
	persons, households, err := Load(writeExtract(t, testRows()), testSchema, occ)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := Audit(persons, households); err != nil {
		t.Fatalf("audit of consistent extract: %v", err)
	}

	persons[0].SPM.NPersons = 5
	persons[0].SPM.TotalResources = 60000
	findings := spm.Findings(Audit(persons, households))
	checks := map[string]int{}
	for _, f := range findings {
		checks[f.Check]++
	}
	if checks["unit-counts"] != 2 {
		t.Errorf("unit-count findings = %d, want 2", checks["unit-counts"])
	}
	if checks["resources"] != 1 {
		t.Errorf("resource findings = %d, want 1", checks["resources"])
	}
}
