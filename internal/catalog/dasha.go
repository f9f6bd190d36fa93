package catalog

// Vimshottari constants
const (
	// CycleYears is the length of the full Vimshottari cycle
	CycleYears = 120.0
	// SiderealYearDays is the year length used to turn dasha years into days
	SiderealYearDays = 365.25636
	// MaxDashaDepth is Mahadasha through Prana
	MaxDashaDepth = 5
)

type dashaLord struct {
	body  Body
	years float64
}

var dashaSequence = [BodyCount]dashaLord{
	{Ketu, 7},
	{Venus, 20},
	{Sun, 6},
	{Moon, 10},
	{Mars, 7},
	{Rahu, 18},
	{Jupiter, 16},
	{Saturn, 19},
	{Mercury, 17},
}

var dashaLevelNames = [MaxDashaDepth]string{
	"Mahadasha",
	"Antardasha",
	"Pratyantardasha",
	"Sukshma",
	"Prana",
}

// DashaSequence returns the canonical lordship order starting at Ketu
func DashaSequence() []Body {
	out := make([]Body, len(dashaSequence))
	for i, l := range dashaSequence {
		out[i] = l.body
	}
	return out
}

// DashaSequenceFrom returns the nine lords in canonical cyclic order
// beginning with start.
func DashaSequenceFrom(start Body) []Body {
	idx := dashaIndex(start)
	out := make([]Body, len(dashaSequence))
	for i := range out {
		out[i] = dashaSequence[(idx+i)%len(dashaSequence)].body
	}
	return out
}

// DashaYears returns the years allotted to a lord, 0 for unknown bodies
func DashaYears(b Body) float64 {
	idx := dashaIndex(b)
	if idx < 0 {
		return 0
	}
	return dashaSequence[idx].years
}

// DashaLevelName names a nesting level (1 = Mahadasha)
func DashaLevelName(level int) string {
	if level < 1 || level > MaxDashaDepth {
		return ""
	}
	return dashaLevelNames[level-1]
}

func dashaIndex(b Body) int {
	for i, l := range dashaSequence {
		if l.body == b {
			return i
		}
	}
	return -1
}
