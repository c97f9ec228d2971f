package gnsscore

import "sync"

// Sig is a single signal observation: one code on one satellite at one
// epoch. Grounded on the teacher's types.go Obs fields (L/P/D/SNR/LLI
// arrays indexed by frequency slot), flattened into a per-code value since
// spec.md §3 models a GObs as band -> []Sig rather than the teacher's
// fixed-size per-satellite frequency arrays.
type Sig struct {
	Code ObsCode
	Band Band

	// LossOfLockIndicator mirrors the RINEX LLI bitfield; bit 0 set means a
	// cycle slip was flagged by the receiver or a prior detector pass.
	LossOfLockIndicator uint8
	Valid               bool

	SNR      float64 // dB-Hz
	Doppler  float64 // Hz
	Phase    float64 // cycles
	Pseudo   float64 // meters

	VarCode  float64 // pseudorange variance, m^2
	VarPhase float64 // carrier phase variance, m^2

	BiasCode  float64 // e.g. differential code bias, meters
	BiasPhase float64 // e.g. phase center offset along LOS, meters
}

// CycleSlip reports whether this signal's LLI flags a slip.
func (s Sig) CycleSlip() bool { return s.LossOfLockIndicator&0x1 != 0 }

// NewSig constructs a Sig, rejecting a band/code mismatch per spec.md §3's
// invariant that every Sig's band agrees with its code's canonical band.
func NewSig(code ObsCode, band Band) (Sig, error) {
	if canon, ok := code.CanonicalBand(); ok && canon != band {
		return Sig{}, newCoreErr(ErrParseCarrier, string(code))
	}
	return Sig{Code: code, Band: band, Valid: true}, nil
}

// GObs is one satellite's full observation set at one epoch: a mapping from
// band to the signals recorded on it (normally one, occasionally more under
// multi-frequency tracking of the same band).
type GObs struct {
	Sv    Sv
	Time  Epoch
	Sigs  map[Band][]Sig
}

// NewGObs constructs an empty observation record for a satellite/epoch.
func NewGObs(sv Sv, t Epoch) *GObs {
	return &GObs{Sv: sv, Time: t, Sigs: make(map[Band][]Sig)}
}

// Add appends a signal, keyed by its own band.
func (g *GObs) Add(s Sig) { g.Sigs[s.Band] = append(g.Sigs[s.Band], s) }

// Find returns the first signal on the given band with the given code.
func (g *GObs) Find(band Band, code ObsCode) (Sig, bool) {
	for _, s := range g.Sigs[band] {
		if s.Code == code {
			return s, true
		}
	}
	return Sig{}, false
}

// SatMap is the per-satellite slice of one epoch's observations.
type SatMap map[Sv]*GObs

// ObsRecord is a time-ordered, capacity-bounded sequence of epochs, each
// holding a SatMap, ported from spec.md §3's ObsMap/ObsRecord: a sliding
// window over (epoch -> sv -> GObs) with oldest-epoch eviction. This is the
// single-threaded, zero-overhead variant.
type ObsRecord struct {
	capacity int
	order    []Epoch
	byEpoch  map[Epoch]SatMap
}

// NewObsRecord constructs an ObsRecord with the given sliding-window
// capacity (epochs retained); capacity<=0 means unbounded.
func NewObsRecord(capacity int) *ObsRecord {
	return &ObsRecord{capacity: capacity, byEpoch: make(map[Epoch]SatMap)}
}

// Push inserts or replaces the SatMap for an epoch, evicting the oldest
// epoch if the window is full.
func (r *ObsRecord) Push(t Epoch, sats SatMap) {
	if _, exists := r.byEpoch[t]; !exists {
		r.order = append(r.order, t)
	}
	r.byEpoch[t] = sats
	if r.capacity > 0 {
		for len(r.order) > r.capacity {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.byEpoch, oldest)
		}
	}
}

// At returns the SatMap recorded for an epoch.
func (r *ObsRecord) At(t Epoch) (SatMap, bool) {
	sm, ok := r.byEpoch[t]
	return sm, ok
}

// Len reports the number of epochs currently retained.
func (r *ObsRecord) Len() int { return len(r.order) }

// Latest returns the most recently pushed epoch and its SatMap.
func (r *ObsRecord) Latest() (Epoch, SatMap, bool) {
	if len(r.order) == 0 {
		return Epoch{}, nil, false
	}
	t := r.order[len(r.order)-1]
	return t, r.byEpoch[t], true
}

// Each calls fn for every retained epoch in chronological order; fn must
// not mutate the record.
func (r *ObsRecord) Each(fn func(t Epoch, sats SatMap)) {
	for _, t := range r.order {
		fn(t, r.byEpoch[t])
	}
}

// SyncObsRecord is the thread-safe variant of ObsRecord, wrapping every
// access with a mutex per spec.md §3's "thread-safe variant wraps access
// with a mutex" requirement.
type SyncObsRecord struct {
	mu  sync.RWMutex
	rec *ObsRecord
}

// NewSyncObsRecord constructs a thread-safe ObsRecord with the given
// sliding-window capacity.
func NewSyncObsRecord(capacity int) *SyncObsRecord {
	return &SyncObsRecord{rec: NewObsRecord(capacity)}
}

func (s *SyncObsRecord) Push(t Epoch, sats SatMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Push(t, sats)
}

func (s *SyncObsRecord) At(t Epoch) (SatMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.At(t)
}

func (s *SyncObsRecord) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Len()
}

func (s *SyncObsRecord) Latest() (Epoch, SatMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Latest()
}

// Each takes the read lock for the duration of the callback; fn must not
// call back into the SyncObsRecord or it will deadlock.
func (s *SyncObsRecord) Each(fn func(t Epoch, sats SatMap)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.rec.Each(fn)
}
