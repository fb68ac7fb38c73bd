// Package report aggregates partitioned and split households into weighted
// statistics on doubling up and its effect on measured poverty.
package report

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dukerupert/doubleup/internal/model"
)

// USPopulation is the population the extract weights are scaled to.
const USPopulation = 323.4e6

// Options controls aggregation.
type Options struct {
	// Population normalizes person weights: each weight is multiplied by
	// Population divided by the sum of person weights.
	Population float64
	BinWidth   float64
	MaxPercent float64
	// Industries orders the industry table of the demographics before it
	// is sorted by size. Industries with no poor workers are kept.
	Industries []string
}

// DefaultOptions returns 100-point poverty bins from 0 to 1000 percent
// scaled to the US population.
func DefaultOptions() Options {
	return Options{Population: USPopulation, BinWidth: 100, MaxPercent: 1000}
}

// Bin is one poverty bracket, [Low, High) percent of the poverty line.
type Bin struct {
	Low        float64 `yaml:"low"`
	High       float64 `yaml:"high"`
	Households float64 `yaml:"households_millions"`
	DoublingUp float64 `yaml:"doubling_up_millions"`
	Share      float64 `yaml:"share_doubling_up"`
}

// ResourceCount is the number of doubling-up households for which a resource
// could not be split.
type ResourceCount struct {
	Resource   model.Resource `yaml:"resource"`
	Label      string         `yaml:"label"`
	Households int            `yaml:"households"`
}

// Impact compares poverty of doubling-up households with the poverty their
// subunits would face living apart. Only households whose resources split
// cleanly are included, and SNAP and medical expenses are left out.
type Impact struct {
	Households          int       `yaml:"households"`
	Subunits            int       `yaml:"subunits"`
	HouseholdsInPoverty float64   `yaml:"households_in_poverty"`
	SubunitsInPoverty   float64   `yaml:"subunits_in_poverty"`
	HouseholdHistogram  []float64 `yaml:"household_histogram_millions"`
	SubunitHistogram    []float64 `yaml:"subunit_histogram_millions"`
	HistogramBoundaries []float64 `yaml:"histogram_boundaries"`
}

// Summary is the aggregate result of a run. Shares are percentages and
// weighted counts are millions of US households.
type Summary struct {
	Households         int             `yaml:"households"`
	DoublingUp         int             `yaml:"doubling_up"`
	WeightedHouseholds float64         `yaml:"weighted_households_millions"`
	WeightedDoublingUp float64         `yaml:"weighted_doubling_up_millions"`
	ShareDoublingUp    float64         `yaml:"share_doubling_up"`
	// ShareDoublingUpSE is the replicate-weight standard error of
	// ShareDoublingUp, zero when the extract has no replicate weights.
	ShareDoublingUpSE  float64         `yaml:"share_doubling_up_se,omitempty"`
	Bins               []Bin           `yaml:"bins"`
	Ambiguous          int             `yaml:"ambiguous"`
	ShareAmbiguous     float64         `yaml:"share_ambiguous"`
	Ambiguity          []ResourceCount `yaml:"ambiguity"`
	Impact             Impact          `yaml:"impact"`
	Demographics       Demographics    `yaml:"demographics"`
}

// Summarize aggregates the households. Households must be partitioned;
// doubling-up households contribute to the impact figures only when they
// carry an unambiguous allocation with poverty applied.
func Summarize(households []*model.Household, opts Options) Summary {
	norm := normalization(households, opts.Population)
	dividers := boundaries(opts)

	weights := make([]float64, len(households))
	doubling := make([]float64, len(households))
	poverty := make([]float64, len(households))
	ambiguous := make(map[model.Resource]int)
	s := Summary{Households: len(households)}

	for i, hh := range households {
		weights[i] = norm * hh.Weight / 1e6
		poverty[i] = hh.PovertyPercent
		if !hh.DoublingUp() {
			continue
		}
		doubling[i] = 1
		s.DoublingUp++
		if hh.Allocation != nil && hh.Allocation.AnyAmbiguous() {
			s.Ambiguous++
			for _, r := range hh.Allocation.AmbiguousResources() {
				ambiguous[r]++
			}
		}
	}

	s.WeightedHouseholds = floats.Sum(weights)
	s.WeightedDoublingUp = floats.Dot(weights, doubling)
	if s.WeightedHouseholds > 0 {
		s.ShareDoublingUp = stat.Mean(doubling, weights) * 100
		reps := make([][]float64, len(households))
		for i, hh := range households {
			reps[i] = hh.ReplicateWeights
		}
		s.ShareDoublingUpSE = replicateSE(doubling, reps, s.ShareDoublingUp)
	}
	if s.DoublingUp > 0 {
		s.ShareAmbiguous = float64(s.Ambiguous) / float64(s.DoublingUp) * 100
	}
	s.Ambiguity = AmbiguityTable(ambiguous)

	s.Bins = bins(dividers, poverty, doubling, weights)
	s.Impact = impact(households, norm, dividers)
	s.Demographics = demographics(households, norm, opts.Industries)
	return s
}

// AmbiguityTable lists every splittable resource with the number of
// households for which it could not be split.
func AmbiguityTable(counts map[model.Resource]int) []ResourceCount {
	var out []ResourceCount
	for _, r := range model.SplittableResources() {
		out = append(out, ResourceCount{Resource: r, Label: r.Label(), Households: counts[r]})
	}
	return out
}

// replicateSE estimates the standard error of the weighted percentage of x
// with replicate weights, reps[i] holding the replicates of observation i:
// 4/R times the sum of squared differences between each replicate estimate
// and the full-sample estimate. It returns 0 unless every observation
// carries the same number of replicates.
func replicateSE(x []float64, reps [][]float64, estimate float64) float64 {
	if len(reps) == 0 {
		return 0
	}
	n := len(reps[0])
	if n == 0 {
		return 0
	}
	for _, rep := range reps {
		if len(rep) != n {
			return 0
		}
	}

	rw := make([]float64, len(reps))
	var sumSq float64
	for r := 0; r < n; r++ {
		for i, rep := range reps {
			rw[i] = rep[r]
		}
		if floats.Sum(rw) == 0 {
			continue
		}
		d := stat.Mean(x, rw)*100 - estimate
		sumSq += d * d
	}
	return math.Sqrt(4 / float64(n) * sumSq)
}

// normalization returns the factor that scales extract weights to the
// population.
func normalization(households []*model.Household, population float64) float64 {
	var personWeights []float64
	for _, hh := range households {
		for _, p := range hh.Persons {
			personWeights = append(personWeights, p.Weight)
		}
	}
	total := floats.Sum(personWeights)
	if total == 0 {
		return 0
	}
	return population / total
}

func boundaries(opts Options) []float64 {
	n := int(opts.MaxPercent / opts.BinWidth)
	if n < 1 {
		n = 1
	}
	return floats.Span(make([]float64, n+1), 0, float64(n)*opts.BinWidth)
}

func bins(dividers, poverty, doubling, weights []float64) []Bin {
	all := histogram(dividers, poverty, weights)
	dw := make([]float64, len(weights))
	floats.MulTo(dw, doubling, weights)
	doubled := histogram(dividers, poverty, dw)

	out := make([]Bin, len(all))
	for i := range all {
		out[i] = Bin{Low: dividers[i], High: dividers[i+1], Households: all[i], DoublingUp: doubled[i]}
		if all[i] > 0 {
			out[i].Share = doubled[i] / all[i] * 100
		}
	}
	return out
}

// histogram sums weights into the bins given by dividers. Values outside
// the dividers are ignored.
func histogram(dividers, x, weights []float64) []float64 {
	lo, hi := dividers[0], dividers[len(dividers)-1]
	var xs, ws []float64
	for i, v := range x {
		if v >= lo && v < hi {
			xs = append(xs, v)
			ws = append(ws, weights[i])
		}
	}
	stat.SortWeighted(xs, ws)
	return stat.Histogram(nil, dividers, xs, ws)
}

func impact(households []*model.Household, norm float64, dividers []float64) Impact {
	var im Impact
	var hhPoverty, hhWeights, hhPoor []float64
	var suPoverty, suWeights, suPoor []float64
	for _, hh := range households {
		if !hh.DoublingUp() || hh.Allocation == nil || hh.Allocation.AnyAmbiguous() || len(hh.Subunits) == 0 {
			continue
		}
		w := norm * hh.Weight / 1e6
		im.Households++
		hhPoverty = append(hhPoverty, hh.PartialPovertyPercent)
		hhWeights = append(hhWeights, w)
		hhPoor = append(hhPoor, indicator(hh.PartialPovertyPercent < 100))
		for _, s := range hh.Subunits {
			im.Subunits++
			suPoverty = append(suPoverty, s.PovertyPercent)
			suWeights = append(suWeights, w)
			suPoor = append(suPoor, indicator(s.PovertyPercent < 100))
		}
	}
	if im.Households > 0 && floats.Sum(hhWeights) > 0 {
		im.HouseholdsInPoverty = stat.Mean(hhPoor, hhWeights) * 100
		im.SubunitsInPoverty = stat.Mean(suPoor, suWeights) * 100
	}
	im.HistogramBoundaries = dividers
	im.HouseholdHistogram = histogram(dividers, hhPoverty, hhWeights)
	im.SubunitHistogram = histogram(dividers, suPoverty, suWeights)
	return im
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
