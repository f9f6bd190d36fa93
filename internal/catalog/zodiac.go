package catalog

import (
	"fmt"
	"strings"
)

// Sign widths and nakshatra widths in degrees
const (
	SignWidth      = 30.0
	NakshatraWidth = 40.0 / 3.0
	PadaWidth      = NakshatraWidth / 4.0
	SignCount      = 12
	NakshatraCount = 27
)

// Sign is a zodiac sign ordinal, 0 (Aries) through 11 (Pisces)
type Sign int

type signInfo struct {
	name  string
	hindi string
}

var signTable = [SignCount]signInfo{
	{"Aries", "मेष"},
	{"Taurus", "वृषभ"},
	{"Gemini", "मिथुन"},
	{"Cancer", "कर्क"},
	{"Leo", "सिंह"},
	{"Virgo", "कन्या"},
	{"Libra", "तुला"},
	{"Scorpio", "वृश्चिक"},
	{"Sagittarius", "धनु"},
	{"Capricorn", "मकर"},
	{"Aquarius", "कुंभ"},
	{"Pisces", "मीन"},
}

// String returns the english sign name
func (s Sign) String() string {
	return signTable[s.mod()].name
}

// Hindi returns the devanagari sign name
func (s Sign) Hindi() string {
	return signTable[s.mod()].hindi
}

// Number returns the 1-based rashi number
func (s Sign) Number() int {
	return s.mod() + 1
}

// Opposite returns the sign 180 degrees away
func (s Sign) Opposite() Sign {
	return Sign((s.mod() + 6) % SignCount)
}

// Modality classifies a sign as movable, fixed or dual
type Modality int

const (
	Movable Modality = iota
	Fixed
	Dual
)

func (m Modality) String() string {
	switch m {
	case Movable:
		return "movable"
	case Fixed:
		return "fixed"
	case Dual:
		return "dual"
	default:
		return "unknown"
	}
}

// Modality returns the sign category used by the navamsha rule
func (s Sign) Modality() Modality {
	return Modality(s.mod() % 3)
}

// MarshalText implements encoding.TextMarshaler
func (s Sign) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Sign) UnmarshalText(text []byte) error {
	parsed, err := ParseSign(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSign resolves an english (case-insensitive) or devanagari sign name
func ParseSign(name string) (Sign, error) {
	for i, info := range signTable {
		if strings.EqualFold(name, info.name) || name == info.hindi {
			return Sign(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sign %q", name)
}

func (s Sign) mod() int {
	return ((int(s) % SignCount) + SignCount) % SignCount
}

// Nakshatra is a lunar mansion ordinal, 0 (Ashwini) through 26 (Revati)
type Nakshatra int

type nakshatraInfo struct {
	name  string
	hindi string
	lord  Body
}

var nakshatraTable = [NakshatraCount]nakshatraInfo{
	{"Ashwini", "अश्विनी", Ketu},
	{"Bharani", "भरणी", Venus},
	{"Krittika", "कृत्तिका", Sun},
	{"Rohini", "रोहिणी", Moon},
	{"Mrigashira", "मृगशिरा", Mars},
	{"Ardra", "आर्द्रा", Rahu},
	{"Punarvasu", "पुनर्वसु", Jupiter},
	{"Pushya", "पुष्य", Saturn},
	{"Ashlesha", "आश्लेषा", Mercury},
	{"Magha", "मघा", Ketu},
	{"Purva Phalguni", "पूर्व फाल्गुनी", Venus},
	{"Uttara Phalguni", "उत्तर फाल्गुनी", Sun},
	{"Hasta", "हस्त", Moon},
	{"Chitra", "चित्रा", Mars},
	{"Swati", "स्वाति", Rahu},
	{"Vishakha", "विशाखा", Jupiter},
	{"Anuradha", "अनुराधा", Saturn},
	{"Jyeshtha", "ज्येष्ठा", Mercury},
	{"Mula", "मूला", Ketu},
	{"Purva Ashadha", "पूर्वाषाढा", Venus},
	{"Uttara Ashadha", "उत्तराषाढा", Sun},
	{"Shravana", "श्रवण", Moon},
	{"Dhanishta", "धनिष्ठा", Mars},
	{"Shatabhisha", "शतभिषा", Rahu},
	{"Purva Bhadrapada", "पूर्वभाद्रपदा", Jupiter},
	{"Uttara Bhadrapada", "उत्तरभाद्रपदा", Saturn},
	{"Revati", "रेवती", Mercury},
}

// String returns the english nakshatra name
func (n Nakshatra) String() string {
	return nakshatraTable[n.mod()].name
}

// Hindi returns the devanagari nakshatra name
func (n Nakshatra) Hindi() string {
	return nakshatraTable[n.mod()].hindi
}

// Lord returns the dasha lord governing the nakshatra
func (n Nakshatra) Lord() Body {
	return nakshatraTable[n.mod()].lord
}

// Start returns the sidereal longitude where the nakshatra begins
func (n Nakshatra) Start() float64 {
	return float64(n.mod()) * NakshatraWidth
}

// MarshalText implements encoding.TextMarshaler
func (n Nakshatra) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (n *Nakshatra) UnmarshalText(text []byte) error {
	parsed, err := ParseNakshatra(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseNakshatra resolves an english (case-insensitive) or devanagari name
func ParseNakshatra(name string) (Nakshatra, error) {
	for i, info := range nakshatraTable {
		if strings.EqualFold(name, info.name) || name == info.hindi {
			return Nakshatra(i), nil
		}
	}
	return 0, fmt.Errorf("unknown nakshatra %q", name)
}

func (n Nakshatra) mod() int {
	return ((int(n) % NakshatraCount) + NakshatraCount) % NakshatraCount
}
