package gnsscore

import "math"

// VarianceMode selects the variance-assignment strategy C7 applies to each
// signal, per spec.md §4.5.
type VarianceMode uint8

const (
	VarStandard VarianceMode = iota
	VarElevation
	VarSNR
)

// RandomHandler assigns pseudorange/carrier variance to signals, ported in
// shape from original_source/.../random.hpp's builder-style GnssRandomHandler
// (here expressed as a plain value type configured at construction, per Go's
// preference for explicit construction over runtime mutation of a shared
// singleton).
type RandomHandler struct {
	Mode VarianceMode

	// elevation-dependent coefficients, per spec.md §4.5: sigma^2(el) =
	// a^2 + b^2/sin^2(el).
	ElevA, ElevB float64

	// phaseScale multiplies the elevation-dependent code variance to derive
	// the phase variance (constellation-specific in principle; a single
	// scalar covers the scenarios this engine targets).
	PhaseScale float64

	// SnrK is the SNR-dependent model's scale constant: sigma^2 = k *
	// 10^(-SNR/10).
	SnrK float64
}

// NewStandardRandomHandler returns the fixed-variance model: 1 m^2 code,
// (0.02 m)^2 phase, per spec.md §4.5.
func NewStandardRandomHandler() RandomHandler {
	return RandomHandler{Mode: VarStandard}
}

// NewElevationRandomHandler returns the elevation-dependent model with the
// given (a, b) coefficients and phase scale factor.
func NewElevationRandomHandler(a, b, phaseScale float64) RandomHandler {
	return RandomHandler{Mode: VarElevation, ElevA: a, ElevB: b, PhaseScale: phaseScale}
}

// NewSNRRandomHandler returns the SNR-dependent model with scale constant k.
func NewSNRRandomHandler(k float64) RandomHandler {
	return RandomHandler{Mode: VarSNR, SnrK: k}
}

// Handle computes (code variance, phase variance) for a signal given its
// elevation (radians), mutating sig's variance slots in place per spec.md
// §4.5's "handler mutates the Sig's variance slots in place".
func (h RandomHandler) Handle(sig *Sig, el float64) {
	var codeVar, phaseVar float64
	switch h.Mode {
	case VarElevation:
		sinEl := math.Sin(el)
		if sinEl < 1e-6 {
			sinEl = 1e-6
		}
		codeVar = SQR(h.ElevA) + SQR(h.ElevB)/SQR(sinEl)
		scale := h.PhaseScale
		if scale == 0 {
			scale = 1e-4
		}
		phaseVar = codeVar * scale
	case VarSNR:
		codeVar = h.SnrK * math.Pow(10, -sig.SNR/10)
		phaseVar = codeVar * 1e-4
	default:
		codeVar = 1.0
		phaseVar = SQR(0.02)
	}
	sig.VarCode = codeVar
	sig.VarPhase = phaseVar
}

// HandleAll applies Handle to every signal of an observation, given the
// satellite's elevation.
func (h RandomHandler) HandleAll(obs *GObs, el float64) {
	for band := range obs.Sigs {
		sigs := obs.Sigs[band]
		for i := range sigs {
			h.Handle(&sigs[i], el)
		}
		obs.Sigs[band] = sigs
	}
}
