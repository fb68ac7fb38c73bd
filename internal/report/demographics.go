package report

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dukerupert/doubleup/internal/model"
)

// Work thresholds for the poor who worked last year.
const (
	ChildAge      = 15 // persons younger than this are counted as children
	FullYearWeeks = 50
	FullTimeHours = 35
)

// WHYNWLY codes for the main reason a person did not work last year.
var notWorkedReasons = []struct {
	code    string
	segment string
}{
	{"1", "unemployed"},
	{"5", "retired"},
	{"2", "disabled"},
	{"4", "school"},
	{"3", "family"},
	{"7", "other"},
}

// Segment is a weighted group of persons. Share is a percentage of the
// group it was drawn from.
type Segment struct {
	Name    string  `yaml:"name"`
	Persons float64 `yaml:"persons_millions"`
	Share   float64 `yaml:"share"`
}

// Demographics describes the persons living below the poverty line. Weighted
// counts are millions of US persons.
type Demographics struct {
	Persons      int     `yaml:"persons"`
	Poor         int     `yaml:"poor"`
	WeightedPoor float64 `yaml:"weighted_poor_millions"`
	SharePoor    float64 `yaml:"share_poor"`
	// SharePoorSE is the person replicate-weight standard error of
	// SharePoor, zero when the extract has no replicate weights.
	SharePoorSE float64   `yaml:"share_poor_se,omitempty"`
	Segments    []Segment `yaml:"segments"`
	// WorkPatterns splits the poor who worked by weeks and usual hours.
	WorkPatterns []Segment `yaml:"work_patterns"`
	// MedianIncome is the weighted median total income of the poor who
	// worked full year, full time.
	MedianIncome float64 `yaml:"median_income_full_year_full_time"`
	// Industries splits the poor who worked by industry last year, largest
	// first.
	Industries []Segment `yaml:"industries"`
}

// segmentOf places a poor person in exactly one segment: children first,
// then those who worked, then by the reason they did not.
func segmentOf(p *model.Person) string {
	if p.Age < ChildAge {
		return "children"
	}
	if p.WorkedLastYear {
		return "employed"
	}
	for _, r := range notWorkedReasons {
		if p.WhyNotWorked == r.code {
			return r.segment
		}
	}
	return "unclassified"
}

// isPoor reports whether the person's SPM unit resources are at or below
// its poverty threshold.
func isPoor(p *model.Person) bool {
	return p.SPM.Threshold > 0 && p.PovertyPercent() <= 100
}

func workPattern(p *model.Person) string {
	year, hours := "part year", "part time"
	if p.WeeksWorked >= FullYearWeeks {
		year = "full year"
	}
	if p.HoursWorkedWeekly >= FullTimeHours {
		hours = "full time"
	}
	return year + ", " + hours
}

// demographics aggregates every person of the households. industries gives
// the order of the industry table before it is sorted by size.
func demographics(households []*model.Household, norm float64, industries []string) Demographics {
	var d Demographics
	var all, poor []float64
	var reps [][]float64
	segments := newTally(segmentNames())
	patterns := newTally([]string{"full year, full time", "full year, part time", "part year, full time", "part year, part time"})
	jobs := newTally(industries)
	var incomes, incomeWeights []float64

	for _, hh := range households {
		for _, p := range hh.Persons {
			d.Persons++
			w := norm * p.Weight / 1e6
			all = append(all, w)
			reps = append(reps, p.ReplicateWeights)
			if !isPoor(p) {
				poor = append(poor, 0)
				continue
			}
			poor = append(poor, 1)
			d.Poor++
			d.WeightedPoor += w
			seg := segmentOf(p)
			segments.add(seg, w)
			if seg != "employed" {
				continue
			}
			pattern := workPattern(p)
			patterns.add(pattern, w)
			if pattern == "full year, full time" {
				incomes = append(incomes, p.TotalIncome())
				incomeWeights = append(incomeWeights, w)
			}
			if p.IndustryLastYear != "" {
				jobs.add(p.IndustryLastYear, w)
			}
		}
	}

	if total := floats.Sum(all); total > 0 {
		d.SharePoor = d.WeightedPoor / total * 100
		d.SharePoorSE = replicateSE(poor, reps, d.SharePoor)
	}
	d.Segments = segments.segments()
	d.WorkPatterns = patterns.segments()
	d.Industries = jobs.segments()
	sort.SliceStable(d.Industries, func(i, j int) bool { return d.Industries[i].Persons > d.Industries[j].Persons })
	if len(incomes) > 0 {
		stat.SortWeighted(incomes, incomeWeights)
		d.MedianIncome = stat.Quantile(0.5, stat.Empirical, incomes, incomeWeights)
	}
	return d
}

func segmentNames() []string {
	names := []string{"children", "employed"}
	for _, r := range notWorkedReasons {
		names = append(names, r.segment)
	}
	return append(names, "unclassified")
}

// tally sums weights by name, keeping names in first-seen order.
type tally struct {
	names []string
	sums  map[string]float64
}

func newTally(names []string) *tally {
	t := &tally{sums: make(map[string]float64)}
	for _, n := range names {
		t.touch(n)
	}
	return t
}

func (t *tally) touch(name string) {
	if _, ok := t.sums[name]; !ok {
		t.names = append(t.names, name)
		t.sums[name] = 0
	}
}

func (t *tally) add(name string, w float64) {
	t.touch(name)
	t.sums[name] += w
}

func (t *tally) segments() []Segment {
	var total float64
	for _, v := range t.sums {
		total += v
	}
	out := make([]Segment, len(t.names))
	for i, n := range t.names {
		out[i] = Segment{Name: n, Persons: t.sums[n]}
		if total > 0 {
			out[i].Share = t.sums[n] / total * 100
		}
	}
	return out
}
