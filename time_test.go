package gnsscore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochRoundTrip(t *testing.T) {
	e, err := NewEpoch(2023, 6, 15, 12, 30, 45.5)
	require.NoError(t, err)
	year, mon, day, hour, min, sec := e.Calendar()
	assert.Equal(t, 2023, year)
	assert.Equal(t, 6, mon)
	assert.Equal(t, 15, day)
	assert.Equal(t, 12, hour)
	assert.Equal(t, 30, min)
	assert.InDelta(t, 45.5, sec, 1e-9)
}

func TestNewEpochRejectsOutOfRangeYear(t *testing.T) {
	_, err := NewEpoch(1900, 1, 1, 0, 0, 0)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrParseDate, pe.Kind)
}

func TestUtcGpsRoundTrip(t *testing.T) {
	// 2023-06-15 is far from any leap second insertion.
	e, err := NewEpoch(2023, 6, 15, 0, 0, 0)
	require.NoError(t, err)
	gps := UtcToGps(e)
	back := GpsToUtc(gps)
	assert.InDelta(t, 0, e.Sub(back), 1e-9)
}

func TestGpsBdsRoundTrip(t *testing.T) {
	e, err := NewEpoch(2023, 6, 15, 0, 0, 0)
	require.NoError(t, err)
	bds := GpsToBds(e)
	assert.InDelta(t, -14.0, bds.Sub(e), 1e-9)
	assert.InDelta(t, 0, BdsToGps(bds).Sub(e), 1e-9)
}

func TestGpsTimeOfWeek(t *testing.T) {
	e, err := NewEpoch(2023, 6, 15, 0, 0, 0)
	require.NoError(t, err)
	week, tow := GpsTimeOfWeek(e)
	back := GpsWeekToTime(week, tow)
	assert.InDelta(t, 0, e.Sub(back), 1e-6)
}

func TestLeapSecondBoundaryFormat(t *testing.T) {
	e, err := NewEpoch(2016, 12, 31, 23, 59, 60)
	require.NoError(t, err)
	assert.Equal(t, "2016-12-31 23:59:60", e.Format(""))
}

func TestLeapSecondsAtUsesNewestApplicableEntry(t *testing.T) {
	after2017, _ := NewEpoch(2017, 6, 1, 0, 0, 0)
	assert.Equal(t, -18.0, LeapSecondsAt(after2017))

	before1981, _ := NewEpoch(1979, 1, 1, 0, 0, 0)
	assert.Equal(t, 0.0, LeapSecondsAt(before1981))
}

func TestParseEpochRejectsGarbage(t *testing.T) {
	_, err := ParseEpoch("not-a-date")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrParseEpoch, pe.Kind)
}

func TestEpochAddAndSubAreInverse(t *testing.T) {
	e, _ := NewEpoch(2020, 1, 1, 0, 0, 0)
	advanced := e.Add(12345.678)
	assert.InDelta(t, 12345.678, advanced.Sub(e), 1e-9)
	assert.True(t, e.Before(advanced))
}

func TestSetLeapSecondsIsDataDriven(t *testing.T) {
	saved := leapSeconds
	defer func() { leapSeconds = saved }()

	SetLeapSeconds([]LeapEntry{{2030, 1, 1, 0, 0, 0, -19}})
	t2, _ := NewEpoch(2031, 1, 1, 0, 0, 0)
	assert.Equal(t, -19.0, LeapSecondsAt(t2))
}

func TestGalWeekRoundTrip(t *testing.T) {
	e, _ := NewEpoch(2023, 1, 1, 0, 0, 0)
	week, tow := GalTimeOfWeek(e)
	back := GalWeekToTime(week, tow)
	assert.InDelta(t, 0, math.Abs(e.Sub(back)), 1e-6)
}
