package catalog

// ashtakaOffsets lists, per body, the houses counted from its own house
// that receive a benefic point. Rahu and Ketu have no list.
var ashtakaOffsets = map[Body][]int{
	Sun:     {1, 2, 4, 7, 8, 9, 10, 11},
	Moon:    {2, 3, 5, 6, 9, 10, 11},
	Mars:    {1, 2, 4, 7, 8, 9, 10, 11},
	Mercury: {1, 3, 5, 6, 9, 10, 11},
	Jupiter: {2, 5, 7, 9, 10, 11},
	Venus:   {1, 2, 3, 4, 5, 8, 9, 11, 12},
	Saturn:  {3, 5, 6, 10, 11},
}

// AshtakaOffsets returns a copy of the benefic offset houses for b.
// The second result is false for bodies that do not contribute.
func AshtakaOffsets(b Body) ([]int, bool) {
	offsets, ok := ashtakaOffsets[b]
	if !ok {
		return nil, false
	}
	out := make([]int, len(offsets))
	copy(out, offsets)
	return out, true
}
