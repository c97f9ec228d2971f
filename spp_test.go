package gnsscore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSppConstellation returns a nav store with 6 GPS + 4 BDS satellites
// spread across the sky (distinct Omg0/M0/I0 per PRN so the resulting
// geometry has a usable GDOP), per spec.md §8 scenario 3.
func buildSppConstellation() (*Nav, []Sv, Epoch) {
	week, tow := 2184, 432000.0
	toe := GpsWeekToTime(week, tow)
	nav := NewNav()
	var svs []Sv

	addOne := func(cons Constellation, prn uint8, omg0, m0, i0 float64) {
		sv := NewSv(cons, prn)
		msg := MsgLNAV
		if cons == ConstBDS {
			msg = MsgD1
		}
		nav.AddEph(Eph{
			Sv: sv, MsgType: msg, Toe: toe, Toc: toe, Toes: tow,
			A0: 26560000.0, E: 0.01, I0: i0, Omg0: omg0, Omega: 0.4,
			M0: m0, DeltaN: 4.3e-9, Af0: 1e-5, Af1: 1.1e-11, Sva: 1,
		})
		svs = append(svs, sv)
	}
	for i := 0; i < 6; i++ {
		addOne(ConstGPS, uint8(i+1), -3.0+float64(i)*1.1, float64(i)*1.05, 0.96+float64(i)*0.01)
	}
	for i := 0; i < 4; i++ {
		addOne(ConstBDS, uint8(20+i), -2.5+float64(i)*1.4, 1.5+float64(i)*1.2, 0.98+float64(i)*0.01)
	}
	return nav, svs, toe
}

func TestSppConvergesToKnownReceiverPosition(t *testing.T) {
	nav, svs, toe := buildSppConstellation()
	solver := NewEphemerisSolver(nav)
	tr := toe.Add(1800)

	solved := solver.SolveSvStatusList(tr, svs)
	require.Len(t, solved, len(svs))
	results := solver.QueryAll(tr)

	rxTrue := Ecef{X: -2267796.0, Y: 5009421.5, Z: 3220952.1}
	rxGeo := Ecef2Pos(rxTrue)
	_, doy := dayOfYear(tr)

	const clkGPS = 12345.678 // meters
	const clkBDS = -6789.012

	obsMap := make(SatMap)
	for i, sv := range svs {
		res := results[sv]
		dx, dy, dz := res.Pos.X-rxTrue.X, res.Pos.Y-rxTrue.Y, res.Pos.Z-rxTrue.Z
		rng := math.Sqrt(dx*dx + dy*dy + dz*dz)

		_, el := SatAzEl(rxGeo, rxTrue, res.Pos)
		trop := TropDelay(rxGeo.Lat, rxGeo.Height, doy, el)

		clkOffset := clkGPS
		code := CodeL1C
		if sv.Constellation == ConstBDS {
			clkOffset = clkBDS
			code = CodeB1I
		}

		noise := 0.05 * math.Sin(float64(i+1))
		pseudo := rng + clkOffset - CLight*res.ClkBias + trop + noise

		sig, err := NewSig(code, BandL1)
		require.NoError(t, err)
		sig.Pseudo = pseudo
		sig.Valid = true
		sig.SNR = 45
		sig.VarCode = 0.09 // sigma = 0.3 m, per spec.md §8 scenario 3

		g := NewGObs(sv, tr)
		g.Add(sig)
		obsMap[sv] = g
	}

	engine := NewSppEngine(solver, NoneIono{}, NewStandardRandomHandler(), nil)
	approx := Ecef{X: rxTrue.X + 500, Y: rxTrue.Y - 400, Z: rxTrue.Z + 300}

	rec, err := engine.Solve(tr, obsMap, approx)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, rec.Mode)
	assert.Equal(t, len(svs), rec.NumSats)

	dist := math.Sqrt(SQR(rec.Ecef.X-rxTrue.X) + SQR(rec.Ecef.Y-rxTrue.Y) + SQR(rec.Ecef.Z-rxTrue.Z))
	assert.Less(t, dist, 3.0)
}

func TestSppReportsInsufficientSatellites(t *testing.T) {
	nav, svs, toe := buildSppConstellation()
	solver := NewEphemerisSolver(nav)
	tr := toe.Add(1800)
	solver.SolveSvStatusList(tr, svs[:3])

	obsMap := make(SatMap)
	for _, sv := range svs[:3] {
		sig, _ := NewSig(CodeL1C, BandL1)
		sig.Pseudo = 2.1e7
		sig.Valid = true
		sig.VarCode = 0.09
		g := NewGObs(sv, tr)
		g.Add(sig)
		obsMap[sv] = g
	}

	engine := NewSppEngine(solver, NoneIono{}, NewStandardRandomHandler(), nil)
	_, err := engine.Solve(tr, obsMap, Ecef{X: -2267796.0, Y: 5009421.5, Z: 3220952.1})
	require.Error(t, err)
	var ce *CoreError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrWlsNaN, ce.Kind)
}
