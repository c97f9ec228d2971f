// Package gnsscore implements the GNSS positioning pipeline: ephemeris
// evaluation, atmosphere and variance models, single-point positioning and
// real-time-kinematic double-difference solving with LAMBDA ambiguity
// resolution.
//
// Ported and reworked from a Go port of RTKLIB (rtkcmn.c, ephemeris.c,
// pntpos.c, rtkpos.c, lambda.c); see DESIGN.md for the full grounding ledger.
package gnsscore

import "math"

// fundamental constants, ported from the teacher's types.go.
const (
	Pi       = 3.1415926535897932
	D2R      = Pi / 180.0
	R2D      = 180.0 / Pi
	CLight   = 299792458.0     // speed of light (m/s)
	AU       = 149597870691.0  // 1 AU (m)
	AS2R     = D2R / 3600.0    // arc sec to radian
	OmegaE   = 7.2921151467e-5 // earth angular velocity, IS-GPS (rad/s)
	OmegaBDS = 7.292115e-5     // earth angular velocity, BDS/GLONASS (rad/s)
	ReWGS84  = 6378137.0       // earth semimajor axis, WGS84 (m)
	FeWGS84  = 1.0 / 298.257223563
)

// carrier frequencies (Hz), ported from types.go.
const (
	Freq1     = 1.57542e9  // L1/E1/B1C
	Freq2     = 1.22760e9  // L2
	Freq5     = 1.17645e9  // L5/E5a/B2a
	Freq6     = 1.27875e9  // E6/L6
	Freq7     = 1.20714e9  // E5b/B2b
	Freq8     = 1.191795e9 // E5a+b
	Freq9     = 2.492028e9 // S
	Freq1GLO  = 1.60200e9  // GLONASS G1 base
	DFreq1GLO = 0.56250e6  // GLONASS G1 bias per channel
	Freq2GLO  = 1.24600e9  // GLONASS G2 base
	DFreq2GLO = 0.43750e6  // GLONASS G2 bias per channel
	Freq1CMP  = 1.561098e9 // BDS B1I
	Freq2CMP  = 1.20714e9  // BDS B2I/B2b
	Freq3CMP  = 1.26852e9  // BDS B3
)

// Constellation identifies a GNSS system.
type Constellation uint8

const (
	ConstNone Constellation = iota
	ConstGPS
	ConstGLO
	ConstGAL
	ConstBDS
	ConstQZS
	ConstSBS
	ConstIRN
)

func (c Constellation) String() string {
	switch c {
	case ConstGPS:
		return "G"
	case ConstGLO:
		return "R"
	case ConstGAL:
		return "E"
	case ConstBDS:
		return "C"
	case ConstQZS:
		return "J"
	case ConstIRN:
		return "I"
	case ConstSBS:
		return "S"
	default:
		return "-"
	}
}

// IsSbas reports whether the constellation is a satellite-based augmentation
// system provider.
func (c Constellation) IsSbas() bool { return c == ConstSBS }

// Band is a canonical carrier-frequency band, independent of the RINEX
// observation code used to record it.
type Band uint8

const (
	BandL1 Band = iota
	BandL2
	BandL5
	BandL6
	BandL7
	BandL8
	BandL9
)

// ObsCode enumerates the RINEX 3 observation codes this engine recognizes.
// Names follow the RINEX "band+attribute" convention (L1C, L2W, L5Q, ...).
type ObsCode string

const (
	CodeL1C ObsCode = "1C"
	CodeL1W ObsCode = "1W"
	CodeL1P ObsCode = "1P"
	CodeL2W ObsCode = "2W"
	CodeL2L ObsCode = "2L"
	CodeL2X ObsCode = "2X"
	CodeL5Q ObsCode = "5Q"
	CodeL5X ObsCode = "5X"
	CodeB1I ObsCode = "2I" // BDS B1I, RINEX 3 code "2I"
	CodeB2I ObsCode = "7I" // BDS B2I, RINEX 3 code "7I"
	CodeB3I ObsCode = "6I"
	CodeB2A ObsCode = "5D"
	CodeE1C ObsCode = "1X"
	CodeE5a ObsCode = "5X"
	CodeE5b ObsCode = "7X"
)

type codeMeta struct {
	cons Constellation
	band Band
}

var codeTable = map[ObsCode]codeMeta{
	CodeL1C: {ConstGPS, BandL1},
	CodeL1W: {ConstGPS, BandL1},
	CodeL1P: {ConstGPS, BandL1},
	CodeL2W: {ConstGPS, BandL2},
	CodeL2L: {ConstGPS, BandL2},
	CodeL2X: {ConstGPS, BandL2},
	CodeL5Q: {ConstGPS, BandL5},
	CodeL5X: {ConstGPS, BandL5}, // also CodeE5a: "5X" is shared by GPS L5 and Galileo E5a
	CodeB1I: {ConstBDS, BandL1},
	CodeB2I: {ConstBDS, BandL7},
	CodeB3I: {ConstBDS, BandL6},
	CodeB2A: {ConstBDS, BandL5},
	CodeE1C: {ConstGAL, BandL1},
	CodeE5b: {ConstGAL, BandL7},
}

// CanonicalBand returns the canonical frequency band for an observation
// code, and false if the code is unknown.
func (c ObsCode) CanonicalBand() (Band, bool) {
	m, ok := codeTable[c]
	return m.band, ok
}

// Frequency returns the nominal carrier frequency in Hz for an observation
// code given the satellite's constellation and, for GLONASS, its FDMA
// channel slot. Returns 0 for an unrecognized code.
func Frequency(code ObsCode, cons Constellation, glonassSlot int) float64 {
	if cons == ConstGLO {
		return GlonassChannelFreq(glonassSlot)
	}
	m, ok := codeTable[code]
	if !ok {
		return 0
	}
	switch m.band {
	case BandL1:
		if cons == ConstBDS {
			return Freq1CMP
		}
		return Freq1
	case BandL2:
		return Freq2
	case BandL5:
		return Freq5
	case BandL6:
		if cons == ConstBDS {
			return Freq3CMP
		}
		return Freq6
	case BandL7:
		if cons == ConstBDS {
			return Freq2CMP
		}
		return Freq7
	case BandL8:
		return Freq8
	case BandL9:
		return Freq9
	}
	return 0
}

// Wavelength returns the carrier wavelength in meters, or 0 if the
// frequency could not be resolved.
func Wavelength(code ObsCode, cons Constellation, glonassSlot int) float64 {
	f := Frequency(code, cons, glonassSlot)
	if f <= 0 {
		return 0
	}
	return CLight / f
}

// GlonassChannelFreq returns the GLONASS G1 FDMA frequency for the given
// channel slot (-7..+6), per spec.md §2 C2.
func GlonassChannelFreq(slot int) float64 {
	return Freq1GLO + DFreq1GLO*float64(slot)
}

// SQR squares x.
func SQR(x float64) float64 { return x * x }

// SQRT is a NaN-safe sqrt: negative inputs return 0 rather than NaN, matching
// the teacher's SQRT() in common.go which guards the same condition that
// arises from small negative roundoff in variance propagation.
func SQRT(x float64) float64 {
	if x < 0 {
		return 0
	}
	return math.Sqrt(x)
}
