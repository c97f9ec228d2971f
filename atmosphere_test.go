package gnsscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaastamoinenZTDPositive(t *testing.T) {
	dry, wet := SaastamoinenZTD(35*D2R, 100.0)
	assert.Greater(t, dry, 2.0)
	assert.Less(t, dry, 2.5)
	assert.Greater(t, wet, 0.0)
	assert.Less(t, wet, 0.5)
}

func TestSaastamoinenZTDOutOfRangeReturnsZero(t *testing.T) {
	dry, wet := SaastamoinenZTD(35*D2R, 30000.0)
	assert.Equal(t, 0.0, dry)
	assert.Equal(t, 0.0, wet)
}

func TestTropDelayDecreasesTowardZenith(t *testing.T) {
	low := TropDelay(35*D2R, 100, 150, 10*D2R)
	high := TropDelay(35*D2R, 100, 150, 80*D2R)
	assert.Greater(t, low, high)
}

func TestTropDelayNegativeElevationIsZero(t *testing.T) {
	assert.Equal(t, 0.0, TropDelay(35*D2R, 100, 150, -1*D2R))
}

func TestNoneIonoAlwaysZero(t *testing.T) {
	m := NoneIono{}
	assert.Equal(t, 0.0, m.Delay(Geodetic{}, 0, 1.0, Epoch{}))
}

func TestKlobucharZeroWhenNoCoefficients(t *testing.T) {
	m := KlobucharIono{}
	assert.Equal(t, 0.0, m.Delay(Geodetic{Lat: 0.6, Lon: 2.4}, 1.0, 0.5, Epoch{}))
}

func TestKlobucharNonzeroWithCoefficients(t *testing.T) {
	m := KlobucharIono{Coeffs: KlobucharCoeffs{
		Alpha: [4]float64{3.82e-8, 1.49e-8, -1.79e-7, 0},
		Beta:  [4]float64{1.43e5, 0, -3.28e5, 1.13e5},
	}}
	e, _ := NewEpoch(2023, 6, 15, 12, 0, 0)
	d := m.Delay(Geodetic{Lat: 0.6, Lon: 2.4}, 1.0, 0.7, e)
	assert.Greater(t, d, 0.0)
}
