package asec

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukerupert/doubleup/internal/model"
)

// buildExtract renders a CSV with every column the schema needs. Columns not
// given in a row default to "0" (CPSIDP defaults to a linkable id and
// SPMTHRESH to a positive threshold).
func buildExtract(schema Schema, rows ...map[string]string) string {
	cols := schema.Columns()
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, ","))
	sb.WriteString("\n")
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			v, ok := r[c]
			switch {
			case ok:
				vals[i] = v
			case c == "CPSIDP":
				vals[i] = "20160301000101"
			case c == "SPMTHRESH":
				vals[i] = "20000"
			default:
				vals[i] = "0"
			}
		}
		sb.WriteString(strings.Join(vals, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestReadConvertsFields(t *testing.T) {
	data := buildExtract(Schema{}, map[string]string{
		"CPSID":       "20160301000001",
		"LINENO":      "2",
		"SPMFAMUNIT":  "1",
		"AGE":         "34",
		"ASPOUSE":     "1",
		"PELNMOM":     "0",
		"WORKLY":      "2",
		"GOTWIC":      "1",
		"WKXPNS":      "9999",
		"INCWAGE":     "41000",
		"INCINT":      "12.5",
		"SPMEITC":     "300",
		"SPMFEDTAXAC": "1200",
		"SPMTOTRES":   "50000",
		"SPMTHRESH":   "25000",
	})

	persons, err := Read(strings.NewReader(data), Schema{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(persons) != 1 {
		t.Fatalf("len(persons) = %d, want 1", len(persons))
	}
	p := persons[0]

	if p.HouseholdID != "20160301000001" {
		t.Errorf("household id = %q", p.HouseholdID)
	}
	if p.Line != 2 || p.Age != 34 {
		t.Errorf("line/age = %d/%d, want 2/34", p.Line, p.Age)
	}
	if !p.Spouse.Is(1) {
		t.Errorf("spouse link = %+v, want line 1", p.Spouse)
	}
	if _, ok := p.Mother.Get(); ok {
		t.Error("mother line 0 should translate to no link")
	}
	if !p.WorkedLastYear || p.GotWIC {
		t.Errorf("worked/wic = %v/%v, want true/false", p.WorkedLastYear, p.GotWIC)
	}
	if p.WorkExpense != nil {
		t.Errorf("work expense = %v, want nil for not-applicable code", *p.WorkExpense)
	}
	if p.Income[model.IncWage] != 41000 || p.Income[model.IncInterest] != 12.5 {
		t.Errorf("income = %v", p.Income)
	}
	if got := p.SPM.Amount(model.FederalTaxBeforeCredit); got != 1500 {
		t.Errorf("federal tax before credit = %v, want 1500", got)
	}
	if got := p.PovertyPercent(); got != 200 {
		t.Errorf("poverty percent = %v, want 200", got)
	}
	if p.Subunit != model.Unassigned {
		t.Errorf("subunit = %d, want unassigned", p.Subunit)
	}
}

func TestReadWorkExpensePresent(t *testing.T) {
	data := buildExtract(Schema{}, map[string]string{"CPSID": "1", "LINENO": "1", "WKXPNS": "850"})
	persons, err := Read(strings.NewReader(data), Schema{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if persons[0].WorkExpense == nil || *persons[0].WorkExpense != 850 {
		t.Errorf("work expense = %v, want 850", persons[0].WorkExpense)
	}
}

func TestReadMissingColumn(t *testing.T) {
	data := "CPSID,LINENO\n1,1\n"
	_, err := Read(strings.NewReader(data), Schema{})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestReadOptionalGroupRequired(t *testing.T) {
	data := buildExtract(Schema{}, map[string]string{"CPSID": "1", "LINENO": "1"})
	_, err := Read(strings.NewReader(data), Schema{Occupation: true})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn for OCCLY", err)
	}
}

func TestReadBadNumber(t *testing.T) {
	data := buildExtract(Schema{},
		map[string]string{"CPSID": "1", "LINENO": "1"},
		map[string]string{"CPSID": "1", "LINENO": "2", "AGE": "forty"},
	)
	_, err := Read(strings.NewReader(data), Schema{})

	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("err = %v, want *RowError", err)
	}
	if rowErr.Row != 3 || rowErr.Field != "AGE" || rowErr.Value != "forty" {
		t.Errorf("row error = %+v", rowErr)
	}
}

func TestReadLinkableOnly(t *testing.T) {
	data := buildExtract(Schema{},
		map[string]string{"CPSID": "1", "LINENO": "1"},
		map[string]string{"CPSID": "2", "LINENO": "1", "CPSIDP": "0"},
	)

	all, err := Read(strings.NewReader(data), Schema{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}

	linkable, err := Read(strings.NewReader(data), Schema{LinkableOnly: true})
	if err != nil {
		t.Fatalf("read linkable: %v", err)
	}
	if len(linkable) != 1 || linkable[0].HouseholdID != "1" {
		t.Errorf("linkable = %+v, want only household 1", linkable)
	}
}

func TestReadOversampleKeyedBySerial(t *testing.T) {
	data := buildExtract(Schema{},
		map[string]string{"CPSID": "0", "CPSIDP": "0", "LINENO": "1", "SERIAL": "70001"},
		map[string]string{"CPSID": "0", "CPSIDP": "0", "LINENO": "1", "SERIAL": "70002"},
		map[string]string{"CPSID": "20160301000001", "LINENO": "1", "SERIAL": "70003"},
	)

	persons, err := Read(strings.NewReader(data), Schema{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []model.HouseholdID{"S70001", "S70002", "20160301000001"}
	if len(persons) != len(want) {
		t.Fatalf("len(persons) = %d, want %d", len(persons), len(want))
	}
	for i, id := range want {
		if persons[i].HouseholdID != id {
			t.Errorf("persons[%d] household = %q, want %q", i, persons[i].HouseholdID, id)
		}
	}
}

func TestReadSerialRequiredWithOversample(t *testing.T) {
	data := buildExtract(Schema{LinkableOnly: true}, map[string]string{"CPSID": "1", "LINENO": "1"})
	if _, err := Read(strings.NewReader(data), Schema{LinkableOnly: true}); err != nil {
		t.Fatalf("linkable read without SERIAL: %v", err)
	}
	_, err := Read(strings.NewReader(data), Schema{})
	if !errors.Is(err, ErrMissingColumn) || !strings.Contains(err.Error(), "SERIAL") {
		t.Errorf("err = %v, want missing SERIAL", err)
	}
}

func TestReadNonPositiveThreshold(t *testing.T) {
	tests := []string{"0", "-5"}
	for _, thresh := range tests {
		data := buildExtract(Schema{},
			map[string]string{"CPSID": "1", "LINENO": "1"},
			map[string]string{"CPSID": "1", "LINENO": "2", "SPMTHRESH": thresh},
		)
		_, err := Read(strings.NewReader(data), Schema{})
		if !errors.Is(err, ErrThreshold) {
			t.Errorf("SPMTHRESH=%s: err = %v, want ErrThreshold", thresh, err)
			continue
		}
		var rowErr *RowError
		if !errors.As(err, &rowErr) || rowErr.Row != 3 || rowErr.Field != "SPMTHRESH" || rowErr.Value != thresh {
			t.Errorf("SPMTHRESH=%s: row error = %+v", thresh, rowErr)
		}
	}
}

func TestReadReplicateWeights(t *testing.T) {
	schema := Schema{ReplicateWeights: true}
	data := buildExtract(schema, map[string]string{"CPSID": "1", "LINENO": "1", "REPWTP3": "1.5", "REPWT160": "7"})

	persons, err := Read(strings.NewReader(data), schema)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p := persons[0]
	if len(p.ReplicateWeights) != ReplicateCount || len(p.HHReplicates) != ReplicateCount {
		t.Fatalf("replicate lengths = %d/%d", len(p.ReplicateWeights), len(p.HHReplicates))
	}
	if p.ReplicateWeights[2] != 1.5 || p.HHReplicates[159] != 7 {
		t.Errorf("replicates = %v / %v", p.ReplicateWeights[2], p.HHReplicates[159])
	}
}

func TestOpenGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asec.csv.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(buildExtract(Schema{}, map[string]string{"CPSID": "9", "LINENO": "1"}))); err != nil {
		t.Fatalf("write: %v", err)
	}
	gz.Close()
	f.Close()

	rc, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	persons, err := Read(rc, Schema{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(persons) != 1 || persons[0].HouseholdID != "9" {
		t.Errorf("persons = %+v", persons)
	}
}
