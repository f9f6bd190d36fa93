package chart

import (
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
)

// Strength computes the Sarvashtakavarga bins. For every body with an offset
// list, each offset h adds a point to bin (house + h - 2) mod 12. Rahu and
// Ketu carry no list and are skipped.
func Strength(ps sidereal.PositionSet, lagna float64) [HouseCount]int {
	var bins [HouseCount]int
	houses := Houses(ps, lagna)

	for _, b := range catalog.Bodies() {
		offsets, ok := catalog.AshtakaOffsets(b)
		if !ok {
			continue
		}
		base := houses[b]
		for _, h := range offsets {
			bins[(base+h-2)%HouseCount]++
		}
	}
	return bins
}

// Total sums the bins; with the standard offsets it is always 50
func Total(bins [HouseCount]int) int {
	sum := 0
	for _, v := range bins {
		sum += v
	}
	return sum
}
