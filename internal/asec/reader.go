package asec

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dukerupert/doubleup/internal/model"
)

var (
	// ErrMissingColumn is returned when the extract header lacks a column
	// the schema requires.
	ErrMissingColumn = errors.New("missing column")
	// ErrThreshold is returned for an SPM poverty threshold that is not
	// positive, which would make every poverty percentage undefined.
	ErrThreshold = errors.New("poverty threshold must be positive")
)

// RowError reports a value that could not be converted.
type RowError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s=%q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens an extract file, gunzipping it when the name ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	return &readCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
}

// Read parses a CSV extract into persons. Every required column is checked
// against the header before any row is read; any unconvertible value aborts
// the read.
func Read(r io.Reader, schema Schema) ([]model.Person, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range schema.Columns() {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var persons []model.Person
	rowNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum, err)
		}

		rec := &row{num: rowNum, index: index, record: record}
		if schema.LinkableOnly && rec.str("CPSIDP") == "0" {
			continue
		}
		p := rec.person(schema)
		if rec.err != nil {
			return nil, rec.err
		}
		persons = append(persons, p)

		if rowNum%10000 == 0 {
			slog.Debug("reading extract", "rows", rowNum)
		}
	}

	slog.Info("extract loaded", "rows", rowNum-1, "persons", len(persons))
	return persons, nil
}

// row reads typed fields from one record. The first conversion failure is
// kept in err and later reads become no-ops.
type row struct {
	num    int
	index  map[string]int
	record []string
	err    error
}

func (r *row) str(field string) string {
	return strings.TrimSpace(r.record[r.index[field]])
}

func (r *row) integer(field string) int {
	if r.err != nil {
		return 0
	}
	v := r.str(field)
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = &RowError{Row: r.num, Field: field, Value: v, Err: err}
		return 0
	}
	return n
}

func (r *row) decimal(field string) float64 {
	if r.err != nil {
		return 0
	}
	v := r.str(field)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = &RowError{Row: r.num, Field: field, Value: v, Err: err}
		return 0
	}
	return f
}

// link converts a line-number column, where 0 means no such person.
func (r *row) link(field string) model.Link {
	n := r.integer(field)
	if n == 0 {
		return model.NoLink
	}
	return model.LinkTo(model.LineNo(n))
}

func (r *row) floats(prefix string) []float64 {
	out := make([]float64, ReplicateCount)
	for i := range out {
		out[i] = r.decimal(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return out
}

func (r *row) person(schema Schema) model.Person {
	hhID := r.str("CPSID")
	if hhID == UnlinkedCPSID && !schema.LinkableOnly {
		hhID = SerialPrefix + r.str("SERIAL")
	}

	p := model.Person{
		HouseholdID:   model.HouseholdID(hhID),
		PersonID:      r.str("CPSIDP"),
		Line:          model.LineNo(r.integer("LINENO")),
		Unit:          model.UnitID(r.str("SPMFAMUNIT")),
		Age:           r.integer("AGE"),
		Sex:           r.str("SEX"),
		MaritalStatus: r.str("MARST"),
		Relate:        r.str("RELATE"),

		WorkedLastYear: r.str("WORKLY") == "2",
		GotWIC:         r.str("GOTWIC") == "2",

		Spouse:  r.link("ASPOUSE"),
		Partner: r.link("PECOHAB"),
		Mother:  r.link("PELNMOM"),
		Father:  r.link("PELNDAD"),

		EITC:                  r.decimal("EITCRED"),
		StateTax:              r.decimal("STATAXAC"),
		FederalTaxAfterCredit: r.decimal("FEDTAXAC"),
		FICA:                  r.decimal("FICA"),

		Weight:          r.decimal("ASECWT"),
		HouseholdWeight: r.decimal("ASECWTH"),

		Subunit: model.Unassigned,
	}

	if v := r.str("WKXPNS"); v != NotApplicableWorkExpense {
		w := r.decimal("WKXPNS")
		p.WorkExpense = &w
	}

	for src := model.IncomeSource(0); src < model.NumIncomeSources; src++ {
		p.Income[src] = r.decimal(src.Field())
	}

	p.SPM = model.SPMUnit{
		Resources:             make(map[model.Resource]float64, len(unitResourceColumns)+1),
		FederalTaxAfterCredit: r.decimal("SPMFEDTAXAC"),
		WorkExpense:           r.decimal("SPMWKXPNS"),
		ChildcareExpense:      r.decimal("SPMCHXPNS"),
		TotalResources:        r.decimal("SPMTOTRES"),
		Threshold:             r.decimal("SPMTHRESH"),
		NAdults:               r.integer("SPMNADULTS"),
		NChildren:             r.integer("SPMNCHILD"),
		NPersons:              r.integer("SPMNPERS"),
	}
	if r.err == nil && p.SPM.Threshold <= 0 {
		r.err = &RowError{Row: r.num, Field: "SPMTHRESH", Value: r.str("SPMTHRESH"), Err: ErrThreshold}
	}
	for _, res := range unitResourceColumns {
		p.SPM.Resources[res] = r.decimal(string(res))
	}
	// The published SPMFEDTAXBC does not reconcile with the person-level
	// taxes; rebuild it from the after-credit figure.
	p.SPM.Resources[model.FederalTaxBeforeCredit] = p.SPM.FederalTaxAfterCredit + p.SPM.Resources[model.EITC]

	if schema.Demographics {
		p.EmpStatus = r.str("EMPSTAT")
		p.FamilyType = r.str("FTYPE")
		p.FamilyRel = r.str("FAMREL")
		p.WhyNotWorked = r.str("WHYNWLY")
		p.HoursWorkedWeekly = r.integer("UHRSWORKLY")
		p.WeeksWorked = r.integer("WKSWORK1")
	}
	if schema.Occupation {
		p.OccupationLastYr = r.str("OCCLY")
	}
	if schema.Geography {
		p.County = r.str("COUNTY")
		p.Tenure = r.str("SPMMORT")
	}
	if schema.ReplicateWeights {
		p.ReplicateWeights = r.floats("REPWTP")
		p.HHReplicates = r.floats("REPWT")
	}
	return p
}
