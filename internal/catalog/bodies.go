package catalog

import "fmt"

// Body identifies one of the nine grahas tracked by vedicwatch
type Body int

const (
	Sun Body = iota
	Moon
	Mars
	Mercury
	Jupiter
	Venus
	Saturn
	Rahu
	Ketu
)

// BodyCount is the number of bodies including the derived Ketu
const BodyCount = 9

type bodyInfo struct {
	name   string
	hindi  string
	symbol string
}

var bodyTable = [BodyCount]bodyInfo{
	Sun:     {"sun", "सूर्य", "सू."},
	Moon:    {"moon", "चन्द्र", "च."},
	Mars:    {"mars", "मंगल", "मं."},
	Mercury: {"mercury", "बुध", "बु."},
	Jupiter: {"jupiter", "बृहस्पति", "बृह"},
	Venus:   {"venus", "शुक्र", "शु"},
	Saturn:  {"saturn", "शनि", "शनि"},
	Rahu:    {"rahu", "राहु", "रा."},
	Ketu:    {"ketu", "केतु", "के."},
}

// String returns the lowercase english identifier
func (b Body) String() string {
	if !b.Valid() {
		return fmt.Sprintf("body(%d)", int(b))
	}
	return bodyTable[b].name
}

// Hindi returns the devanagari name used in chart labels
func (b Body) Hindi() string {
	if !b.Valid() {
		return ""
	}
	return bodyTable[b].hindi
}

// Symbol returns the short devanagari abbreviation
func (b Body) Symbol() string {
	if !b.Valid() {
		return ""
	}
	return bodyTable[b].symbol
}

// Valid reports whether b is a cataloged body
func (b Body) Valid() bool {
	return b >= Sun && b <= Ketu
}

// Derived reports whether the body is a projection of another body rather
// than something an ephemeris can be asked about.
func (b Body) Derived() bool {
	return b == Ketu
}

// MarshalText implements encoding.TextMarshaler
func (b Body) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("invalid body %d", int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (b *Body) UnmarshalText(text []byte) error {
	parsed, err := ParseBody(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBody resolves an english identifier or devanagari name
func ParseBody(s string) (Body, error) {
	for i, info := range bodyTable {
		if s == info.name || s == info.hindi {
			return Body(i), nil
		}
	}
	return 0, fmt.Errorf("unknown body %q", s)
}

// Bodies returns all bodies in catalog order, Ketu last
func Bodies() []Body {
	out := make([]Body, BodyCount)
	for i := range out {
		out[i] = Body(i)
	}
	return out
}

// Queried returns the bodies an ephemeris is asked about (everything except Ketu)
func Queried() []Body {
	return []Body{Sun, Moon, Mars, Mercury, Jupiter, Venus, Saturn, Rahu}
}

// FastBodies are the bodies whose sign and nakshatra changes are worth
// scanning for over a ten day window.
func FastBodies() []Body {
	return []Body{Moon, Mercury, Venus, Sun}
}

// ShadowOf returns the body Ketu is projected from
func ShadowOf(b Body) (Body, bool) {
	if b == Ketu {
		return Rahu, true
	}
	return 0, false
}
