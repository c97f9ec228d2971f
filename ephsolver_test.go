package gnsscore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gpsKeplerFixture() Eph {
	week, tow := 2184, 432000.0
	toe := GpsWeekToTime(week, tow)
	return Eph{
		Sv:     NewSv(ConstGPS, 1),
		Toe:    toe,
		Toc:    toe,
		Toes:   tow,
		A0:     26560000.0,
		E:      0.005,
		I0:     0.96,
		Omg0:   -1.5,
		Omega:  0.3,
		M0:     1.0,
		DeltaN: 4.5e-9,
		Af1:    1.2e-11,
		Sva:    1,
	}
}

func TestGpsKeplerSanity(t *testing.T) {
	e := gpsKeplerFixture()
	state, err := evalKepler(e, 0, 0, e.Toe)
	require.NoError(t, err)

	norm := math.Sqrt(SQR(state.Pos[0]) + SQR(state.Pos[1]) + SQR(state.Pos[2]))
	assert.InDelta(t, 26560000.0*(1-0.005), norm, 50000)
	assert.InDelta(t, e.Af1, state.ClkDrift, 1e-9)
}

func TestEphemerisSolverUniversalMagnitudeBounds(t *testing.T) {
	e := gpsKeplerFixture()
	nav := NewNav()
	nav.AddEph(e)
	solver := NewEphemerisSolver(nav)

	for k := -12; k <= 12; k++ {
		tr := e.Toe.Add(float64(k) * 600)
		solved := solver.SolveSvStatusList(tr, []Sv{e.Sv})
		if len(solved) == 0 {
			continue
		}
		res, ok := solver.Query(tr, e.Sv)
		require.True(t, ok)
		norm := math.Sqrt(SQR(res.Pos.X) + SQR(res.Pos.Y) + SQR(res.Pos.Z))
		assert.GreaterOrEqual(t, norm, 1.5e7)
		assert.LessOrEqual(t, norm, 4.3e7)
		assert.Less(t, math.Abs(res.ClkBias), 1e-3)
	}
}

func TestEphemerisSolverIdempotent(t *testing.T) {
	e := gpsKeplerFixture()
	nav := NewNav()
	nav.AddEph(e)
	solver := NewEphemerisSolver(nav)

	tr := e.Toe.Add(1800)
	solver.SolveSvStatusList(tr, []Sv{e.Sv})
	r1, _ := solver.Query(tr, e.Sv)
	first := *r1

	solver.SolveSvStatusList(tr, []Sv{e.Sv})
	r2, _ := solver.Query(tr, e.Sv)

	assert.Equal(t, first.Pos, r2.Pos)
	assert.Equal(t, first.ClkBias, r2.ClkBias)
}

func TestBdsGeoTiltAppliedRelativeToMeoPath(t *testing.T) {
	geoEph := gpsKeplerFixture()
	geoEph.Sv = NewSv(ConstBDS, 1)
	meoEph := geoEph
	meoEph.Sv = NewSv(ConstBDS, 20) // not a GEO PRN, same orbital elements

	tk := 60.0
	tAt := geoEph.Toe.Add(tk)

	geoState, err := evalKepler(geoEph, 0, 0, tAt)
	require.NoError(t, err)
	meoState, err := evalKepler(meoEph, 0, 0, tAt)
	require.NoError(t, err)

	// the GEO path differs from the MEO path by the +5 deg X-axis tilt
	// plus its extra Z rotation: both are rotations, so the Y component
	// changes while the position magnitudes stay equal to within 1 m.
	assert.NotEqual(t, geoState.Pos[1], meoState.Pos[1])
	normGeo := math.Sqrt(SQR(geoState.Pos[0]) + SQR(geoState.Pos[1]) + SQR(geoState.Pos[2]))
	normMeo := math.Sqrt(SQR(meoState.Pos[0]) + SQR(meoState.Pos[1]) + SQR(meoState.Pos[2]))
	assert.InDelta(t, normGeo, normMeo, 1.0)
}

func TestKeplerIterationOverflowReported(t *testing.T) {
	e := gpsKeplerFixture()
	e.E = 50.0 // pathological eccentricity forces non-convergence
	_, err := evalKepler(e, 0, 0, e.Toe.Add(100))
	require.Error(t, err)
	var ce *CoreError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKeplerIterationOverflow, ce.Kind)
}

func TestEphemerisUnavailableWhenNoRecordInWindow(t *testing.T) {
	e := gpsKeplerFixture()
	nav := NewNav()
	nav.AddEph(e)
	solver := NewEphemerisSolver(nav)

	farFuture := e.Toe.Add(100000)
	solved := solver.SolveSvStatusList(farFuture, []Sv{e.Sv})
	assert.Empty(t, solved)
}
