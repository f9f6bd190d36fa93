// Package chart maps sidereal positions into whole-sign houses, builds
// divisional charts and aggregates house strength.
package chart

import (
	"github.com/sawpanic/vedicwatch/internal/catalog"
	"github.com/sawpanic/vedicwatch/internal/sidereal"
	"github.com/sawpanic/vedicwatch/internal/zodiac"
)

// HouseCount is the number of whole-sign houses
const HouseCount = 12

// House returns the whole-sign house (1..12) of a longitude relative to lagna
func House(lon, lagna float64) int {
	return houseOf(zodiac.SignOf(lon), zodiac.SignOf(lagna))
}

func houseOf(sign, lagnaSign catalog.Sign) int {
	return ((int(sign)-int(lagnaSign))%HouseCount+HouseCount)%HouseCount + 1
}

// Houses assigns every body in ps, Ketu included, to its house
func Houses(ps sidereal.PositionSet, lagna float64) map[catalog.Body]int {
	out := make(map[catalog.Body]int, catalog.BodyCount)
	for _, p := range ps.All() {
		out[p.Body] = House(p.Longitude, lagna)
	}
	return out
}

// SignInHouse returns the sign occupying house h for a lagna sign
func SignInHouse(lagnaSign catalog.Sign, h int) catalog.Sign {
	return catalog.Sign(((int(lagnaSign)+h-1)%HouseCount + HouseCount) % HouseCount)
}
