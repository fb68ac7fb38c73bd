// Package spm splits a doubling-up household's shared SPM resources between
// its family subunits and recomputes poverty figures for each subunit.
package spm

import "math"

// FamilyScaling returns the SPM equivalence scale for a unit with the given
// number of adults and children. Thresholds for one-adult units are scaled
// by this factor to get the threshold for the whole unit.
func FamilyScaling(adults, children int) float64 {
	switch {
	case adults == 1 && children == 0:
		return 1
	case adults == 2 && children == 0:
		return 1.41
	case adults == 1 && children > 0:
		// single parent
		return math.Pow(1+0.8+0.5*float64(children-1), 0.7)
	default:
		return math.Pow(float64(adults)+0.5*float64(children), 0.7)
	}
}
