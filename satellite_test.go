package gnsscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSvStringFormat(t *testing.T) {
	assert.Equal(t, "G01", NewSv(ConstGPS, 1).String())
	assert.Equal(t, "C14", NewSv(ConstBDS, 14).String())
	assert.Equal(t, "R--", NewSv(ConstGLO, 0).String())
}

func TestParseSvRoundTrip(t *testing.T) {
	sv, err := ParseSv("G01")
	require.NoError(t, err)
	assert.Equal(t, NewSv(ConstGPS, 1), sv)
	assert.Equal(t, "G01", sv.String())
}

func TestParseSvRejectsUnknownConstellation(t *testing.T) {
	_, err := ParseSv("X01")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrParseConstellation, pe.Kind)
}

func TestSvTotalOrdering(t *testing.T) {
	a := NewSv(ConstGPS, 5)
	b := NewSv(ConstGPS, 12)
	c := NewSv(ConstGLO, 1)
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}

func TestIsBdsGeo(t *testing.T) {
	assert.True(t, NewSv(ConstBDS, 3).IsBdsGeo())
	assert.True(t, NewSv(ConstBDS, 59).IsBdsGeo())
	assert.False(t, NewSv(ConstBDS, 20).IsBdsGeo())
	assert.False(t, NewSv(ConstGPS, 3).IsBdsGeo())
}

func TestEarthRatePerConstellation(t *testing.T) {
	assert.Equal(t, OmegaBDS, NewSv(ConstBDS, 1).EarthRate())
	assert.Equal(t, OmegaBDS, NewSv(ConstGLO, 1).EarthRate())
	assert.Equal(t, OmegaE, NewSv(ConstGPS, 1).EarthRate())
}
