package gnsscore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRtkConstellation returns 6 GPS satellites spread across the sky, for
// a short-baseline double-difference scenario (spec.md §8 scenario 4).
func buildRtkConstellation() (*Nav, []Sv, Epoch) {
	week, tow := 2184, 432000.0
	toe := GpsWeekToTime(week, tow)
	nav := NewNav()
	var svs []Sv
	for i := 0; i < 6; i++ {
		sv := NewSv(ConstGPS, uint8(i+1))
		nav.AddEph(Eph{
			Sv: sv, Toe: toe, Toc: toe, Toes: tow,
			A0: 26560000.0, E: 0.01, I0: 0.96 + float64(i)*0.01,
			Omg0: -3.0 + float64(i)*1.1, Omega: 0.4, M0: float64(i) * 1.05,
			DeltaN: 4.3e-9, Af0: 1e-5, Af1: 1.1e-11, Sva: 1,
		})
		svs = append(svs, sv)
	}
	return nav, svs, toe
}

func TestShortBaselineRtkResolvesAmbiguities(t *testing.T) {
	nav, svs, toe := buildRtkConstellation()
	solver := NewEphemerisSolver(nav)
	tr := toe.Add(1800)

	require.Len(t, solver.SolveSvStatusList(tr, svs), len(svs))
	results := solver.QueryAll(tr)

	baseEcef := Ecef{X: -2267796.0, Y: 5009421.5, Z: 3220952.1}
	baselineTrue := [3]float64{800.0, -900.0, 200.0}
	roverTrue := Ecef{X: baseEcef.X + baselineTrue[0], Y: baseEcef.Y + baselineTrue[1], Z: baseEcef.Z + baselineTrue[2]}
	baselineLen := math.Sqrt(SQR(baselineTrue[0]) + SQR(baselineTrue[1]) + SQR(baselineTrue[2]))
	require.InDelta(t, 1221.0, baselineLen, 5.0) // ~1.2 km, short baseline per the scenario

	lambda := Wavelength(CodeL1C, ConstGPS, 0)
	require.Greater(t, lambda, 0.0)

	// a distinct integer double-difference ambiguity per non-reference
	// satellite, chosen so the test exercises the fixed-solution path
	// rather than a degenerate all-zero case.
	ddAmbiguities := map[int]float64{1: 4, 2: -7, 3: 12, 4: 3, 5: -9}

	rangeFrom := func(sv Sv, from Ecef) float64 {
		p := results[sv].Pos
		dx, dy, dz := p.X-from.X, p.Y-from.Y, p.Z-from.Z
		return math.Sqrt(dx*dx + dy*dy + dz*dz)
	}

	rover := make(SatMap)
	base := make(SatMap)
	refSv := svs[0]

	makeSig := func(pseudo, phaseCycles float64) Sig {
		sig, err := NewSig(CodeL1C, BandL1)
		require.NoError(t, err)
		sig.Pseudo = pseudo
		sig.Phase = phaseCycles
		sig.Valid = true
		sig.SNR = 45
		sig.VarCode = 0.0009 // sigma = 0.03 m
		sig.VarPhase = 1e-6  // sigma = 0.001 m
		return sig
	}

	// reference satellite: zero ambiguity at both stations.
	rRange := rangeFrom(refSv, roverTrue)
	bRange := rangeFrom(refSv, baseEcef)
	rg := NewGObs(refSv, tr)
	rg.Add(makeSig(rRange, rRange/lambda))
	rover[refSv] = rg
	bg := NewGObs(refSv, tr)
	bg.Add(makeSig(bRange, bRange/lambda))
	base[refSv] = bg

	for i, sv := range svs[1:] {
		prn := int(sv.Prn)
		ndd := ddAmbiguities[prn]
		rRange := rangeFrom(sv, roverTrue)
		bRange := rangeFrom(sv, baseEcef)
		noise := 0.002 * math.Sin(float64(i+1))

		rg := NewGObs(sv, tr)
		rg.Add(makeSig(rRange+noise, rRange/lambda+ndd))
		rover[sv] = rg

		bg := NewGObs(sv, tr)
		bg.Add(makeSig(bRange-noise, bRange/lambda))
		base[sv] = bg
	}

	engine := NewRtkEngine(solver, NoneIono{}, NewStandardRandomHandler(), 5.0, 0, 3.0)
	baseRef := StationRef{Fixed: true, Pos: baseEcef}

	result, err := engine.Solve(tr, rover, base, baseEcef, baseRef)
	require.NoError(t, err)
	require.NotNil(t, result.Fix)
	assert.GreaterOrEqual(t, result.Fix.Ratio, 3.0)
	assert.True(t, result.Fix.Accepted)
	assert.Equal(t, ModeFixed, result.Record.Mode)

	fixedBaseline := [3]float64{
		result.Record.Ecef.X - baseEcef.X,
		result.Record.Ecef.Y - baseEcef.Y,
		result.Record.Ecef.Z - baseEcef.Z,
	}
	errNorm := math.Sqrt(SQR(fixedBaseline[0]-baselineTrue[0]) + SQR(fixedBaseline[1]-baselineTrue[1]) + SQR(fixedBaseline[2]-baselineTrue[2]))
	assert.Less(t, errNorm, 0.02) // within 2 cm, per spec.md §8 scenario 4
}

func TestSelectCommonViewRequiresAtLeastTwoSatellites(t *testing.T) {
	nav, svs, toe := buildRtkConstellation()
	solver := NewEphemerisSolver(nav)
	tr := toe.Add(1800)
	solver.SolveSvStatusList(tr, svs[:1])
	results := solver.QueryAll(tr)

	roverGeo := Ecef2Pos(Ecef{X: -2267796.0, Y: 5009421.5, Z: 3220952.1})
	rover := SatMap{svs[0]: NewGObs(svs[0], tr)}
	base := SatMap{svs[0]: NewGObs(svs[0], tr)}

	engine := NewRtkEngine(solver, NoneIono{}, NewStandardRandomHandler(), 5.0, 0, 3.0)
	payloads := engine.SelectCommonView(rover, base, roverGeo, Ecef{X: -2267796.0, Y: 5009421.5, Z: 3220952.1}, results)
	assert.Empty(t, payloads)
}
