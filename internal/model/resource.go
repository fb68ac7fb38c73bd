package model

// Resource names an SPM unit level benefit or expense.
type Resource string

// In-kind benefits.
const (
	SchoolLunch    Resource = "SPMLUNCH"
	HousingSubsidy Resource = "SPMCAPHOUS"
	WIC            Resource = "SPMWIC"
	EnergySubsidy  Resource = "SPMHEAT"
	SNAP           Resource = "SPMSNAP"
	EITC           Resource = "SPMEITC"
)

// Expenses.
const (
	MedicalExpense         Resource = "SPMMEDXPNS"
	WorkChildcare          Resource = "SPMCAPXPNS"
	ChildSupportPaid       Resource = "SPMCHSUP"
	StateTax               Resource = "SPMSTTAX"
	FederalTaxBeforeCredit Resource = "SPMFEDTAXBC"
	FICA                   Resource = "SPMFICA"
)

// Benefits lists the in-kind benefits in codebook order.
var Benefits = []Resource{SchoolLunch, HousingSubsidy, WIC, EnergySubsidy, SNAP, EITC}

// Expenses lists the expenses in codebook order.
var Expenses = []Resource{MedicalExpense, WorkChildcare, ChildSupportPaid, StateTax, FederalTaxBeforeCredit, FICA}

var resourceLabels = map[Resource]string{
	SchoolLunch:            "school lunch value",
	HousingSubsidy:         "capped housing subsidy",
	WIC:                    "WIC value",
	EnergySubsidy:          "energy subsidy",
	SNAP:                   "SNAP subsidy",
	EITC:                   "federal EITC",
	MedicalExpense:         "medical out-of-pocket and Medicare B subsidy",
	WorkChildcare:          "capped work and child care expenses",
	ChildSupportPaid:       "child support paid",
	StateTax:               "state tax",
	FederalTaxBeforeCredit: "federal tax (before EITC)",
	FICA:                   "FICA and federal retirement",
}

// Label returns a human-readable description.
func (r Resource) Label() string {
	if l, ok := resourceLabels[r]; ok {
		return l
	}
	return string(r)
}

// IsBenefit reports whether the resource adds to family resources.
func (r Resource) IsBenefit() bool {
	for _, b := range Benefits {
		if b == r {
			return true
		}
	}
	return false
}

// Splittable reports whether the resource can ever be allocated to subunits.
// SNAP and medical expenses carry no information about who they belong to.
func (r Resource) Splittable() bool {
	return r != SNAP && r != MedicalExpense
}

// SplittableResources returns every resource that the splitter allocates,
// benefits first.
func SplittableResources() []Resource {
	var out []Resource
	for _, r := range append(append([]Resource{}, Benefits...), Expenses...) {
		if r.Splittable() {
			out = append(out, r)
		}
	}
	return out
}

// IncomeSource indexes Person.Income.
type IncomeSource int

const (
	IncWage IncomeSource = iota
	IncBusiness
	IncFarm
	IncSocialSecurity
	IncWelfare
	IncRetirement
	IncSSI
	IncInterest
	IncUnemployment
	IncWorkersComp
	IncVeterans
	IncSurvivors
	IncDisability
	IncDividends
	IncRent
	IncEducation
	IncChildSupport
	IncAssistance
	IncOther

	NumIncomeSources
)

// IncomeFields maps each income source to its extract column.
var IncomeFields = [NumIncomeSources]string{
	"INCWAGE", "INCBUS", "INCFARM", "INCSS", "INCWELFR", "INCRETIR", "INCSSI",
	"INCINT", "INCUNEMP", "INCWKCOM", "INCVET", "INCSURV", "INCDISAB", "INCDIVID",
	"INCRENT", "INCEDUC", "INCCHILD", "INCASIST", "INCOTHER",
}

// Field returns the extract column for the income source.
func (s IncomeSource) Field() string {
	return IncomeFields[s]
}
