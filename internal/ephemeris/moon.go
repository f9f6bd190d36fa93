package ephemeris

// lunarTerm is one periodic term of the lunar longitude series. Arguments are
// multiples of D (elongation), M (solar anomaly), Mp (lunar anomaly) and
// F (argument of latitude); Coeff is in millionths of a degree.
type lunarTerm struct {
	D, M, Mp, F int
	Coeff       float64
}

var lunarLongitudeTerms = []lunarTerm{
	{0, 0, 1, 0, 6288774},
	{2, 0, -1, 0, 1274027},
	{2, 0, 0, 0, 658314},
	{0, 0, 2, 0, 213618},
	{0, 1, 0, 0, -185116},
	{0, 0, 0, 2, -114332},
	{2, 0, -2, 0, 58793},
	{2, -1, -1, 0, 57066},
	{2, 0, 1, 0, 53322},
	{2, -1, 0, 0, 45758},
	{0, 1, -1, 0, -40923},
	{1, 0, 0, 0, -34720},
	{0, 1, 1, 0, -30383},
	{2, 0, 0, -2, 15327},
	{0, 0, 1, 2, -12528},
	{0, 0, 1, -2, 10980},
	{4, 0, -1, 0, 10675},
	{0, 0, 3, 0, 10034},
	{4, 0, -2, 0, 8548},
	{2, 1, -1, 0, -7888},
	{2, 1, 0, 0, -6766},
	{1, 0, -1, 0, -5163},
	{1, 1, 0, 0, 4987},
	{2, -1, 1, 0, 4036},
	{2, 0, 2, 0, 3994},
	{4, 0, 0, 0, 3861},
	{2, 0, -3, 0, 3665},
	{0, 1, -2, 0, -2689},
	{2, 0, -1, 2, -2602},
	{2, -1, -2, 0, 2390},
	{1, 0, 1, 0, -2348},
	{2, -2, 0, 0, 2236},
}

type lunarArgs struct {
	L, D, M, Mp, F, E float64
}

func lunarArguments(T float64) lunarArgs {
	T2, T3, T4 := T*T, T*T*T, T*T*T*T
	return lunarArgs{
		L:  Normalize(218.3164477 + 481267.88123421*T - 0.0015786*T2 + T3/538841 - T4/65194000),
		D:  Normalize(297.8501921 + 445267.1114034*T - 0.0018819*T2 + T3/545868 - T4/113065000),
		M:  Normalize(357.5291092 + 35999.0502909*T - 0.0001536*T2 + T3/24490000),
		Mp: Normalize(134.9633964 + 477198.8675055*T + 0.0087414*T2 + T3/69699 - T4/14712000),
		F:  Normalize(93.2720950 + 483202.0175233*T - 0.0036539*T2 - T3/3526000 + T4/863310000),
		E:  1 - 0.002516*T - 0.0000074*T2,
	}
}

// moonLongitude returns the geometric longitude of the Moon referred to the
// mean equinox of date.
func moonLongitude(T float64) float64 {
	a := lunarArguments(T)
	sum := 0.0
	for _, term := range lunarLongitudeTerms {
		arg := float64(term.D)*a.D + float64(term.M)*a.M + float64(term.Mp)*a.Mp + float64(term.F)*a.F
		c := term.Coeff
		switch term.M {
		case 1, -1:
			c *= a.E
		case 2, -2:
			c *= a.E * a.E
		}
		sum += c * sinD(arg)
	}

	a1 := 119.75 + 131.849*T
	a2 := 53.09 + 479264.290*T
	sum += 3958*sinD(a1) + 1962*sinD(a.L-a.F) + 318*sinD(a2)

	return Normalize(a.L + sum/1e6)
}

// meanNode returns the longitude of the mean ascending lunar node
func meanNode(T float64) float64 {
	T2, T3, T4 := T*T, T*T*T, T*T*T*T
	return Normalize(125.0445479 - 1934.1362891*T + 0.0020754*T2 + T3/467441 - T4/60616000)
}

// trueNode applies the principal periodic corrections to the mean node
func trueNode(T float64) float64 {
	a := lunarArguments(T)
	corr := -1.4979*sinD(2*(a.D-a.F)) -
		0.1500*sinD(a.M) -
		0.1226*sinD(2*a.D) +
		0.1176*sinD(2*a.F) -
		0.0801*sinD(2*(a.Mp-a.F))
	return Normalize(meanNode(T) + corr)
}

// nutationLongitude returns the nutation in longitude in degrees
func nutationLongitude(T float64) float64 {
	omega := meanNode(T)
	l := 280.4665 + 36000.7698*T
	lp := 218.3165 + 481267.8813*T
	arcsec := -17.20*sinD(omega) - 1.32*sinD(2*l) - 0.23*sinD(2*lp) + 0.21*sinD(2*omega)
	return arcsec / 3600
}
