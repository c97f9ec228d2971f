package gnsscore

import "fmt"

// Sv identifies a satellite as (constellation, prn). Prn 0 denotes "whole
// system" per spec.md §3.
//
// Grounded on original_source/.../sv.hpp's Constellation+Sv pair, re-expressed
// without the C++ operator-overload/formatter machinery: Go's comparable
// struct plus fmt.Stringer cover the same ground.
type Sv struct {
	Constellation Constellation
	Prn           uint8
}

// NewSv constructs a satellite identifier.
func NewSv(cons Constellation, prn uint8) Sv { return Sv{Constellation: cons, Prn: prn} }

// String renders "G01", "C01", or "R--" for prn==0.
func (s Sv) String() string {
	if s.Prn == 0 {
		return s.Constellation.String() + "--"
	}
	return fmt.Sprintf("%s%02d", s.Constellation, s.Prn)
}

// Compare orders satellites by constellation then prn, giving the total
// ordering required by spec.md §3.
func (s Sv) Compare(o Sv) int {
	if s.Constellation != o.Constellation {
		if s.Constellation < o.Constellation {
			return -1
		}
		return 1
	}
	switch {
	case s.Prn < o.Prn:
		return -1
	case s.Prn > o.Prn:
		return 1
	default:
		return 0
	}
}

// Less reports whether s sorts before o; convenience for sort.Slice.
func (s Sv) Less(o Sv) bool { return s.Compare(o) < 0 }

// IsSbas reports whether this satellite belongs to an SBAS-provider
// constellation.
func (s Sv) IsSbas() bool { return s.Constellation.IsSbas() }

// IsMixed reports whether the constellation tag covers more than one
// physical system (true only for the generic SBAS tag, which aggregates
// WAAS/EGNOS/MSAS/GAGAN providers under distinct PRN ranges).
func (s Sv) IsMixed() bool { return s.Constellation == ConstSBS }

// IsBdsGeo reports whether this is a BeiDou GEO satellite (prn<=5 or
// prn>=59), per spec.md §4.3 step 8.
func (s Sv) IsBdsGeo() bool {
	return s.Constellation == ConstBDS && (s.Prn <= 5 || s.Prn >= 59)
}

// EarthRate returns the constellation's Earth rotation rate used for
// transmission-time frame rotation (spec.md §4.3): GPS/GAL use the IS-GPS
// value, BDS/GLONASS use the slightly different BDS/GLONASS value.
func (s Sv) EarthRate() float64 {
	switch s.Constellation {
	case ConstBDS, ConstGLO:
		return OmegaBDS
	default:
		return OmegaE
	}
}

// ParseSv parses a satellite identifier of the form "<constellation-letter><prn>",
// e.g. "G01", "C14", "R--". Returns ErrParseConstellation for an unknown
// constellation letter and ErrParseSv for other malformed input.
func ParseSv(s string) (Sv, error) {
	if len(s) < 2 {
		return Sv{}, &ParseError{Kind: ErrParseSv, Input: s}
	}
	var cons Constellation
	switch s[0] {
	case 'G':
		cons = ConstGPS
	case 'R':
		cons = ConstGLO
	case 'E':
		cons = ConstGAL
	case 'C':
		cons = ConstBDS
	case 'J':
		cons = ConstQZS
	case 'S':
		cons = ConstSBS
	case 'I':
		cons = ConstIRN
	default:
		return Sv{}, &ParseError{Kind: ErrParseConstellation, Input: s}
	}
	if s[1:] == "--" {
		return Sv{Constellation: cons, Prn: 0}, nil
	}
	var prn int
	if _, err := fmt.Sscanf(s[1:], "%d", &prn); err != nil || prn < 0 || prn > 255 {
		return Sv{}, &ParseError{Kind: ErrParseSv, Input: s}
	}
	return Sv{Constellation: cons, Prn: uint8(prn)}, nil
}
