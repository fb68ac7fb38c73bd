package model

// HouseholdID identifies a household (CPSID).
type HouseholdID string

// UnitID identifies an SPM resource unit within a household (SPMFAMUNIT).
type UnitID string

// LineNo is a person's line number, unique within a household (LINENO).
type LineNo int

// Link is an optional reference to another person in the same household.
// The zero value is "no link".
type Link struct {
	line LineNo
	ok   bool
}

// NoLink is the absent link.
var NoLink = Link{}

// LinkTo returns a link to the given line number.
func LinkTo(line LineNo) Link {
	return Link{line: line, ok: true}
}

// Get returns the linked line number and whether the link is present.
func (l Link) Get() (LineNo, bool) {
	return l.line, l.ok
}

// Is reports whether the link is present and points at line.
func (l Link) Is(line LineNo) bool {
	return l.ok && l.line == line
}

// Relationship codes (RELATE) that count as adults for SPM unit sizing
// regardless of age.
const (
	RelateHouseholder = "101"
	RelateSpouse      = "201"
)

// AdultAge is the age at which a person counts as an adult for SPM unit sizing.
const AdultAge = 18

// Person is one row of an ASEC extract.
type Person struct {
	HouseholdID HouseholdID
	PersonID    string // CPSIDP
	Line        LineNo
	Unit        UnitID

	Age           int
	Sex           string
	MaritalStatus string
	Relate        string
	EmpStatus     string
	FamilyType    string
	FamilyRel     string
	County        string
	Tenure        string // SPMMORT

	WorkedLastYear    bool   // WORKLY == "2"
	GotWIC            bool   // GOTWIC == "2"
	WhyNotWorked      string // WHYNWLY
	OccupationLastYr  string // OCCLY
	IndustryLastYear  string // derived from OccupationLastYr
	HoursWorkedWeekly int    // UHRSWORKLY
	WeeksWorked       int    // WKSWORK1

	Spouse  Link // ASPOUSE
	Partner Link // PECOHAB
	Mother  Link // PELNMOM
	Father  Link // PELNDAD

	Income [NumIncomeSources]float64

	EITC                  float64  // EITCRED
	StateTax              float64  // STATAXAC
	FederalTaxAfterCredit float64  // FEDTAXAC
	FICA                  float64  // FICA
	WorkExpense           *float64 // WKXPNS; nil when not applicable

	Weight           float64   // ASECWT
	HouseholdWeight  float64   // ASECWTH
	ReplicateWeights []float64 // REPWTP1..160, only when requested
	HHReplicates     []float64 // REPWT1..160, only when requested

	SPM SPMUnit

	Subunit SubunitID
}

// SPMUnit holds the SPM unit level fields as recorded on each member's row.
type SPMUnit struct {
	Resources map[Resource]float64

	FederalTaxAfterCredit float64 // SPMFEDTAXAC
	WorkExpense           float64 // SPMWKXPNS
	ChildcareExpense      float64 // SPMCHXPNS
	TotalResources        float64 // SPMTOTRES
	Threshold             float64 // SPMTHRESH
	NAdults               int
	NChildren             int
	NPersons              int
}

// Amount returns the unit total for a resource.
func (u SPMUnit) Amount(r Resource) float64 {
	return u.Resources[r]
}

// PovertyPercent is the person's SPM unit resources as a percentage of its
// poverty threshold.
func (p *Person) PovertyPercent() float64 {
	return p.SPM.TotalResources / p.SPM.Threshold * 100
}

// IsSPMAdult reports whether the person counts as an adult when sizing an SPM
// unit: 18 or older, or the householder or their spouse.
func (p *Person) IsSPMAdult() bool {
	return p.Age >= AdultAge || p.Relate == RelateHouseholder || p.Relate == RelateSpouse
}

// TotalIncome sums every income source for the person.
func (p *Person) TotalIncome() float64 {
	var total float64
	for _, v := range p.Income {
		total += v
	}
	return total
}
