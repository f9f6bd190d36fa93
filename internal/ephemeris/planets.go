package ephemeris

import (
	"math"

	"github.com/sawpanic/vedicwatch/internal/catalog"
)

// orbit holds J2000 mean elements and their rates per Julian century:
// semi-major axis (au), eccentricity, inclination, mean longitude,
// longitude of perihelion and longitude of ascending node (degrees).
type orbit struct {
	a, e, i, l, peri, node                   float64
	aDot, eDot, iDot, lDot, periDot, nodeDot float64
}

var earthOrbit = orbit{
	1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0,
	0.00000562, -0.00004392, -0.01294668, 35999.37244981, 0.32327364, 0.0,
}

var planetOrbits = map[catalog.Body]orbit{
	catalog.Mercury: {
		0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081,
	},
	catalog.Venus: {
		0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418,
	},
	catalog.Mars: {
		1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343,
	},
	catalog.Jupiter: {
		5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106,
	},
	catalog.Saturn: {
		9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794,
	},
}

type vec3 struct{ x, y, z float64 }

func (v vec3) sub(o vec3) vec3 { return vec3{v.x - o.x, v.y - o.y, v.z - o.z} }

// heliocentric returns J2000 ecliptic rectangular coordinates in au
func (o orbit) heliocentric(T float64) vec3 {
	a := o.a + o.aDot*T
	e := o.e + o.eDot*T
	inc := o.i + o.iDot*T
	l := o.l + o.lDot*T
	peri := o.peri + o.periDot*T
	node := o.node + o.nodeDot*T

	argPeri := peri - node
	meanAnomaly := wrap180(l - peri)
	ecc := solveKepler(meanAnomaly, e)

	xp := a * (cosD(ecc) - e)
	yp := a * math.Sqrt(1-e*e) * sinD(ecc)

	cw, sw := cosD(argPeri), sinD(argPeri)
	cn, sn := cosD(node), sinD(node)
	ci, si := cosD(inc), sinD(inc)

	return vec3{
		x: (cw*cn-sw*sn*ci)*xp + (-sw*cn-cw*sn*ci)*yp,
		y: (cw*sn+sw*cn*ci)*xp + (-sw*sn+cw*cn*ci)*yp,
		z: (sw*si)*xp + (cw*si)*yp,
	}
}

// solveKepler returns the eccentric anomaly in degrees for mean anomaly m
func solveKepler(m, e float64) float64 {
	eStar := e / rad
	ecc := m + eStar*sinD(m)
	for i := 0; i < 30; i++ {
		dm := m - (ecc - eStar*sinD(ecc))
		de := dm / (1 - e*cosD(ecc))
		ecc += de
		if math.Abs(de) < 1e-9 {
			break
		}
	}
	return ecc
}

// geocentricJ2000 returns the geometric longitude referred to the J2000 equinox
func geocentricJ2000(body catalog.Body, T float64) (float64, bool) {
	earth := earthOrbit.heliocentric(T)
	if body == catalog.Sun {
		return Normalize(atan2D(-earth.y, -earth.x)), true
	}
	o, ok := planetOrbits[body]
	if !ok {
		return 0, false
	}
	g := o.heliocentric(T).sub(earth)
	return Normalize(atan2D(g.y, g.x)), true
}

// precession returns the accumulated general precession in longitude since J2000
func precession(T float64) float64 {
	return (5028.796195*T + 1.1054348*T*T) / 3600
}
