package asec

import (
	"fmt"

	"github.com/dukerupert/doubleup/internal/model"
)

// ReplicateCount is the number of replicate weights published with ASEC.
const ReplicateCount = 160

// NotApplicableWorkExpense is the WKXPNS code for persons without work expenses.
const NotApplicableWorkExpense = "9999"

// UnlinkedCPSID is the CPSID IPUMS gives every household of the ASEC
// oversample. Those households are told apart by SERIAL instead.
const UnlinkedCPSID = "0"

// SerialPrefix marks household ids built from SERIAL so they cannot collide
// with a CPSID.
const SerialPrefix = "S"

// Schema declares which column groups an extract must carry. The core
// columns are always required; each optional group is checked once against
// the header when enabled.
type Schema struct {
	// Demographics adds EMPSTAT, FTYPE, FAMREL, WHYNWLY, UHRSWORKLY, WKSWORK1.
	Demographics bool
	// Occupation adds OCCLY.
	Occupation bool
	// Geography adds COUNTY and SPMMORT.
	Geography bool
	// ReplicateWeights adds REPWTP1..160 and REPWT1..160.
	ReplicateWeights bool
	// LinkableOnly drops persons without a CPSIDP (the ASEC oversample),
	// whose records cannot be connected to longitudinal CPS data. When the
	// oversample is kept, SERIAL is required to key its households.
	LinkableOnly bool
}

// FullSchema requests every optional group.
func FullSchema() Schema {
	return Schema{
		Demographics:     true,
		Occupation:       true,
		Geography:        true,
		ReplicateWeights: true,
		LinkableOnly:     true,
	}
}

var coreColumns = []string{
	"CPSID", "CPSIDP", "LINENO", "SPMFAMUNIT",
	"AGE", "SEX", "MARST", "RELATE", "WORKLY", "GOTWIC",
	"ASPOUSE", "PECOHAB", "PELNMOM", "PELNDAD",
	"EITCRED", "STATAXAC", "FEDTAXAC", "FICA", "WKXPNS",
	"ASECWT", "ASECWTH",
	"SPMFEDTAXAC", "SPMWKXPNS", "SPMCHXPNS", "SPMTOTRES", "SPMTHRESH",
	"SPMNADULTS", "SPMNCHILD", "SPMNPERS",
}

// unitResourceColumns are read straight into SPMUnit.Resources. The federal
// tax before credit is derived instead of read.
var unitResourceColumns = []model.Resource{
	model.SchoolLunch, model.HousingSubsidy, model.WIC, model.EnergySubsidy,
	model.SNAP, model.EITC,
	model.MedicalExpense, model.WorkChildcare, model.ChildSupportPaid,
	model.StateTax, model.FICA,
}

var demographicColumns = []string{"EMPSTAT", "FTYPE", "FAMREL", "WHYNWLY", "UHRSWORKLY", "WKSWORK1"}

var occupationColumns = []string{"OCCLY"}

var geographyColumns = []string{"COUNTY", "SPMMORT"}

// Columns returns every column the schema requires.
func (s Schema) Columns() []string {
	cols := append([]string{}, coreColumns...)
	for _, r := range unitResourceColumns {
		cols = append(cols, string(r))
	}
	cols = append(cols, model.IncomeFields[:]...)
	if !s.LinkableOnly {
		cols = append(cols, "SERIAL")
	}
	if s.Demographics {
		cols = append(cols, demographicColumns...)
	}
	if s.Occupation {
		cols = append(cols, occupationColumns...)
	}
	if s.Geography {
		cols = append(cols, geographyColumns...)
	}
	if s.ReplicateWeights {
		cols = append(cols, replicateColumns("REPWTP")...)
		cols = append(cols, replicateColumns("REPWT")...)
	}
	return cols
}

func replicateColumns(prefix string) []string {
	cols := make([]string, ReplicateCount)
	for i := range cols {
		cols[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return cols
}
