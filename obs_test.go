package gnsscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigRejectsBandMismatch(t *testing.T) {
	_, err := NewSig(CodeL1C, BandL2)
	require.Error(t, err)
	var ce *CoreError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrParseCarrier, ce.Kind)
}

func TestGObsAddAndFind(t *testing.T) {
	g := NewGObs(NewSv(ConstGPS, 1), Epoch{})
	sig, err := NewSig(CodeL1C, BandL1)
	require.NoError(t, err)
	sig.Pseudo = 20000000.0
	g.Add(sig)

	found, ok := g.Find(BandL1, CodeL1C)
	require.True(t, ok)
	assert.Equal(t, 20000000.0, found.Pseudo)
}

func TestObsRecordSlidingWindowEviction(t *testing.T) {
	r := NewObsRecord(2)
	t0, _ := NewEpoch(2023, 1, 1, 0, 0, 0)
	t1 := t0.Add(1)
	t2 := t1.Add(1)

	r.Push(t0, SatMap{})
	r.Push(t1, SatMap{})
	r.Push(t2, SatMap{})

	assert.Equal(t, 2, r.Len())
	_, ok := r.At(t0)
	assert.False(t, ok, "oldest epoch should have been evicted")
	_, ok = r.At(t2)
	assert.True(t, ok)
}

func TestObsRecordLatest(t *testing.T) {
	r := NewObsRecord(0)
	t0, _ := NewEpoch(2023, 1, 1, 0, 0, 0)
	sv := NewSv(ConstGPS, 1)
	sats := SatMap{sv: NewGObs(sv, t0)}
	r.Push(t0, sats)

	latest, got, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, t0, latest)
	assert.Contains(t, got, sv)
}

func TestSyncObsRecordConcurrentSafe(t *testing.T) {
	r := NewSyncObsRecord(10)
	t0, _ := NewEpoch(2023, 1, 1, 0, 0, 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Push(t0.Add(float64(i)), SatMap{})
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		r.Len()
	}
	<-done
	assert.LessOrEqual(t, r.Len(), 10)
}
