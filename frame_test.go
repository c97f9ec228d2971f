package gnsscore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEcefPosRoundTrip(t *testing.T) {
	orig := Ecef{X: -2267796.0, Y: 5009421.5, Z: 3220952.1}
	geo := Ecef2Pos(orig)
	back := Pos2Ecef(geo)

	dist := math.Sqrt(SQR(back.X-orig.X) + SQR(back.Y-orig.Y) + SQR(back.Z-orig.Z))
	assert.Less(t, dist, 1e-6)
}

func TestEcefPosRoundTripSatellitePosition(t *testing.T) {
	// satellite-altitude position, per the universal property in spec.md §8
	orig := Ecef{X: 15000000.0, Y: -12000000.0, Z: 18000000.0}
	geo := Ecef2Pos(orig)
	back := Pos2Ecef(geo)
	dist := math.Sqrt(SQR(back.X-orig.X) + SQR(back.Y-orig.Y) + SQR(back.Z-orig.Z))
	assert.Less(t, dist, 1e-6)
}

func TestEnuRoundTrip(t *testing.T) {
	origin := Geodetic{Lat: 35.0 * D2R, Lon: 139.0 * D2R, Height: 100.0}
	d := Ecef{X: 12.3, Y: -45.6, Z: 78.9}
	enu := Ecef2Enu(origin, d)
	back := Enu2Ecef(origin, enu)
	assert.InDelta(t, d.X, back.X, 1e-9)
	assert.InDelta(t, d.Y, back.Y, 1e-9)
	assert.InDelta(t, d.Z, back.Z, 1e-9)
}

func TestSatAzElOverhead(t *testing.T) {
	recvEcef := Pos2Ecef(Geodetic{Lat: 0, Lon: 0, Height: 0})
	recvGeo := Ecef2Pos(recvEcef)
	// satellite directly overhead on the ellipsoid normal.
	satEcef := Pos2Ecef(Geodetic{Lat: 0, Lon: 0, Height: 20200000})

	_, el := SatAzEl(recvGeo, recvEcef, satEcef)
	assert.InDelta(t, Pi/2, el, 1e-6)
}

func TestCovEnuEcefRoundTrip(t *testing.T) {
	origin := Geodetic{Lat: 35.0 * D2R, Lon: 139.0 * D2R, Height: 50.0}
	cov := Cov3{4, 0.1, 0.2, 0.1, 9, 0.3, 0.2, 0.3, 16}
	enu := Cov2Enu(origin, cov)
	back := Cov2Ecef(origin, enu)
	for i := 0; i < 9; i++ {
		assert.InDelta(t, cov[i], back[i], 1e-6)
	}
}
