package gnsscore

import "math"

// gravitational constants per constellation, ported from the teacher's
// ephemeris.go (MU_GPS/MU_GAL/MU_CMP/MU_GLO and the relativistic F
// constants derived from them).
const (
	muGPS = 3.9860050e14
	muGAL = 3.986004418e14
	muCMP = 3.986004418e14
	muGLO = 3.9860044e14

	fGPS = -4.442807633e-10
	fGAL = -4.442807309e-10
	fCMP = -4.442807309e-10

	maxKeplerIter = 30

	bdsGeoTilt = 5.0 * D2R // fixed +5 deg X-axis tilt for BDS GEO, spec.md §4.3 step 8

	// GLONASS RK4 integration constants, ported from the teacher's Deq/Glorbit.
	j2GLO = 1.0826257e-3
	reGLO = 6378136.0
)

func muFor(cons Constellation) float64 {
	switch cons {
	case ConstGAL:
		return muGAL
	case ConstBDS:
		return muCMP
	default:
		return muGPS
	}
}

func relF(cons Constellation) float64 {
	switch cons {
	case ConstGAL:
		return fGAL
	case ConstBDS:
		return fCMP
	default:
		return fGPS
	}
}

// SatState is the position/velocity/clock snapshot an ephemeris evaluation
// produces at a single instant, before transmission-time / Earth-rotation
// correction is layered on by the solver.
type SatState struct {
	Pos   [3]float64
	Vel   [3]float64
	ClkBias  float64
	ClkDrift float64
	Variance float64
}

// uraTable maps a URA index to its metric value (meters), ported from the
// teacher's ephemeris.go ura_value table; squared by callers per spec.md
// §4.3 step 10.
var uraTable = []float64{
	2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0,
	96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0,
}

// uraVariance converts a URA/SISA index to a variance in m^2.
func uraVariance(idx int) float64 {
	if idx < 0 {
		return SQR(uraTable[len(uraTable)-1])
	}
	if idx >= len(uraTable) {
		return SQR(6144.0)
	}
	return SQR(uraTable[idx])
}

// evalKepler evaluates a Keplerian (Eph) or CNAV-family (Ceph, via the
// embedded Eph plus rate terms) record at absolute time t, following the
// ten-step procedure of spec.md §4.3. aDot/nDot are zero for plain Eph.
func evalKepler(e Eph, aDot, nDot float64, t Epoch) (SatState, error) {
	mu := muFor(e.Sv.Constellation)
	tk := t.Sub(e.Toe)

	a := e.A0 + aDot*tk
	if a <= 0 {
		return SatState{}, newCoreErr(ErrEphemerisUnavailable, e.Sv.String())
	}
	n0 := math.Sqrt(mu / (a * a * a))
	n := n0 + e.DeltaN + 0.5*nDot*tk

	mk := e.M0 + n*tk
	ek := mk
	converged := false
	for i := 0; i < maxKeplerIter; i++ {
		ekOld := ek
		ek = mk + e.E*math.Sin(ek)
		if math.Abs(ek-ekOld) < 1e-10 {
			converged = true
			break
		}
	}
	if !converged {
		return SatState{}, newCoreErr(ErrKeplerIterationOverflow, e.Sv.String())
	}

	sinE, cosE := math.Sincos(ek)
	vk := math.Atan2(math.Sqrt(1-e.E*e.E)*sinE, cosE-e.E)
	phik := vk + e.Omega

	sin2p, cos2p := math.Sincos(2 * phik)
	uk := phik + e.Cus*sin2p + e.Cuc*cos2p
	rk := a*(1-e.E*cosE) + e.Crs*sin2p + e.Crc*cos2p
	ik := e.I0 + e.IDot*tk + e.Cis*sin2p + e.Cic*cos2p

	sinU, cosU := math.Sincos(uk)
	xo := rk * cosU
	yo := rk * sinU

	var omk float64
	isGeo := e.Sv.IsBdsGeo()
	if isGeo {
		omk = e.Omg0 + e.OmegaDot*tk - OmegaBDS*e.Toes
	} else {
		omk = e.Omg0 + (e.OmegaDot-e.Sv.EarthRate())*tk - e.Sv.EarthRate()*e.Toes
	}
	sinO, cosO := math.Sincos(omk)
	sinI, cosI := math.Sincos(ik)

	pos := [3]float64{
		xo*cosO - yo*cosI*sinO,
		xo*sinO + yo*cosI*cosO,
		yo * sinI,
	}

	if isGeo {
		sin5, cos5 := math.Sincos(bdsGeoTilt)
		rx := rotX(pos, cos5, sin5)
		rz := rotZ(rx, math.Cos(-OmegaBDS*tk), math.Sin(-OmegaBDS*tk))
		pos = rz
	}

	// velocity, following the 3x4 derivative jacobian of spec.md §4.3 step 7.
	ekDot := n / (1 - e.E*cosE)
	vkDot := ekDot * math.Sqrt(1-e.E*e.E) / (1 - e.E*cosE)
	ukDot := vkDot + 2*(e.Cus*cos2p-e.Cuc*sin2p)*vkDot
	rkDot := a*e.E*sinE*ekDot + 2*(e.Crs*cos2p-e.Crc*sin2p)*vkDot
	ikDot := e.IDot + 2*(e.Cis*cos2p-e.Cic*sin2p)*vkDot

	xoDot := rkDot*cosU - rk*ukDot*sinU
	yoDot := rkDot*sinU + rk*ukDot*cosU

	var omkDot float64
	if isGeo {
		omkDot = e.OmegaDot
	} else {
		omkDot = e.OmegaDot - e.Sv.EarthRate()
	}

	vel := [3]float64{
		xoDot*cosO - yoDot*cosI*sinO - (xo*sinO+yo*cosI*cosO)*omkDot + yo*sinI*sinO*ikDot,
		xoDot*sinO + yoDot*cosI*cosO + (xo*cosO-yo*cosI*sinO)*omkDot - yo*sinI*cosO*ikDot,
		yoDot*sinI + yo*cosI*ikDot,
	}

	dtc := t.Sub(e.Toc)
	dtr := relF(e.Sv.Constellation) * e.E * math.Sqrt(a) * sinE
	// relativistic correction rate, finite-differenced analytically:
	dtrDot := relF(e.Sv.Constellation) * e.E * math.Sqrt(a) * cosE * ekDot

	clkBias := e.Af0 + e.Af1*dtc + e.Af2*dtc*dtc + dtr
	clkDrift := e.Af1 + 2*e.Af2*dtc + dtrDot

	vari := uraVariance(e.Sva)
	if e.Sv.Constellation == ConstGAL {
		vari = sisaVariance(e.Sva)
	}

	return SatState{Pos: pos, Vel: vel, ClkBias: clkBias, ClkDrift: clkDrift, Variance: vari}, nil
}

// sisaVariance converts a Galileo SISA index to variance (m^2), stepwise by
// URA region per spec.md §4.3 step 10.
func sisaVariance(idx int) float64 {
	switch {
	case idx <= 49:
		return SQR(float64(idx) * 0.01)
	case idx <= 74:
		return SQR(0.5 + float64(idx-50)*0.02)
	case idx <= 99:
		return SQR(1.0 + float64(idx-75)*0.04)
	case idx <= 125:
		return SQR(2.0 + float64(idx-100)*0.16)
	default:
		return SQR(6144.0)
	}
}

func rotX(v [3]float64, c, s float64) [3]float64 {
	return [3]float64{v[0], c*v[1] - s*v[2], s*v[1] + c*v[2]}
}

func rotZ(v [3]float64, c, s float64) [3]float64 {
	return [3]float64{c*v[0] - s*v[1], s*v[0] + c*v[1], v[2]}
}

// glonassDeriv computes the GLONASS ECEF coupled-equation derivatives
// (position rate = velocity, velocity rate = gravity + J2 + Coriolis/
// centrifugal), ported from the teacher's Deq in common.go.
func glonassDeriv(x [6]float64, acc [3]float64) [6]float64 {
	r2 := SQR(x[0]) + SQR(x[1]) + SQR(x[2])
	r3 := r2 * math.Sqrt(r2)
	omg2 := SQR(OmegaBDS)

	a := 1.5 * j2GLO * muGLO * SQR(reGLO) / r2 / math.Sqrt(r2)
	b := 5.0 * SQR(x[2]) / r2
	c := -muGLO/r3 - a*(1-b)

	var xdot [6]float64
	xdot[0] = x[3]
	xdot[1] = x[4]
	xdot[2] = x[5]
	xdot[3] = c*x[0] + omg2*x[0] + 2*OmegaBDS*x[4] + acc[0]
	xdot[4] = c*x[1] + omg2*x[1] - 2*OmegaBDS*x[3] + acc[1]
	xdot[5] = (c - 2*a) * x[2] + acc[2]
	return xdot
}

// evalGlonass integrates a GEph state vector to time t by 4th-order
// Runge-Kutta with +-60s steps, ported from the teacher's Glorbit.
func evalGlonass(g GEph, t Epoch) (SatState, error) {
	tt := t.Sub(g.Toe)
	step := 60.0
	if tt < 0 {
		step = -60.0
	}
	x := [6]float64{g.Pos[0], g.Pos[1], g.Pos[2], g.Vel[0], g.Vel[1], g.Vel[2]}

	remaining := tt
	for math.Abs(remaining) > 1e-9 {
		h := step
		if math.Abs(remaining) < math.Abs(step) {
			h = remaining
		}
		k1 := glonassDeriv(x, g.Acc)
		var x2 [6]float64
		for i := range x2 {
			x2[i] = x[i] + k1[i]*h/2
		}
		k2 := glonassDeriv(x2, g.Acc)
		var x3 [6]float64
		for i := range x3 {
			x3[i] = x[i] + k2[i]*h/2
		}
		k3 := glonassDeriv(x3, g.Acc)
		var x4 [6]float64
		for i := range x4 {
			x4[i] = x[i] + k3[i]*h
		}
		k4 := glonassDeriv(x4, g.Acc)
		for i := range x {
			x[i] += h / 6 * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
		}
		remaining -= h
	}

	dt := t.Sub(g.Toe)
	clkBias := -g.Tau + g.Gamma*dt
	for i := 0; i < 2; i++ {
		clkBias = -g.Tau + g.Gamma*(dt-clkBias)
	}

	return SatState{
		Pos:      [3]float64{x[0], x[1], x[2]},
		Vel:      [3]float64{x[3], x[4], x[5]},
		ClkBias:  clkBias,
		ClkDrift: g.Gamma,
		Variance: SQR(20.0),
	}, nil
}

// evalSbas evaluates an SEph state vector by constant-acceleration
// extrapolation, ported from the teacher's SEph2Pos/SEph2Clk.
func evalSbas(s SEph, t Epoch) (SatState, error) {
	dt := t.Sub(s.T0)
	var pos, vel [3]float64
	for i := 0; i < 3; i++ {
		pos[i] = s.Pos[i] + s.Vel[i]*dt + 0.5*s.Acc[i]*dt*dt
		vel[i] = s.Vel[i] + s.Acc[i]*dt
	}
	clkBias := s.Af0 + s.Af1*dt
	return SatState{Pos: pos, Vel: vel, ClkBias: clkBias, ClkDrift: s.Af1, Variance: SQR(100.0)}, nil
}

// EphemerisResult is the per-(tr, sv) snapshot C5 publishes, per spec.md
// §3's EphemerisResult: ECEF position rotated to tr's rotating frame,
// velocity, clock bias/drift, transit time, variance, and lazily-updated
// az/el.
type EphemerisResult struct {
	Sv       Sv
	Tr       Epoch
	Pos      Ecef
	Vel      [3]float64
	ClkBias  float64
	ClkDrift float64
	TransitTime float64
	Variance float64

	hasAzEl bool
	Az, El  float64
}

// AzEl lazily computes and caches azimuth/elevation given a station
// position, per spec.md §3's "lazily updated elevation/azimuth".
func (r *EphemerisResult) AzEl(stationGeodetic Geodetic, stationEcef Ecef) (az, el float64) {
	if !r.hasAzEl {
		r.Az, r.El = SatAzEl(stationGeodetic, stationEcef, r.Pos)
		r.hasAzEl = true
	}
	return r.Az, r.El
}

// EphemerisSolver is C5: given a receiver time and pseudorange, produces a
// satellite ECEF position/velocity/clock corrected for transmission time
// and Earth rotation, ported from the teacher's SatPos/SatPoss in
// ephemeris.go.
type EphemerisSolver struct {
	nav   *Nav
	cache map[Sv]*EphemerisResult
}

// NewEphemerisSolver constructs a solver over the given (non-owned)
// navigation store.
func NewEphemerisSolver(nav *Nav) *EphemerisSolver {
	return &EphemerisSolver{nav: nav, cache: make(map[Sv]*EphemerisResult)}
}

// evalAt dispatches to the Kepler, GLONASS, or SBAS evaluator for sv at
// absolute time t, returning pclk(t) alongside the full state.
func (s *EphemerisSolver) evalAt(sv Sv, t Epoch) (SatState, error) {
	switch sv.Constellation {
	case ConstGLO:
		g, ok := s.nav.FindLatestGEph(sv, t)
		if !ok {
			return SatState{}, newCoreErr(ErrEphemerisUnavailable, sv.String())
		}
		return evalGlonass(g, t)
	case ConstSBS:
		se, ok := s.nav.FindLatestSEph(sv, t)
		if !ok {
			return SatState{}, newCoreErr(ErrEphemerisUnavailable, sv.String())
		}
		return evalSbas(se, t)
	default:
		if c, ok := s.nav.FindLatestCeph(sv, t); ok {
			st, err := evalKepler(c.Eph, c.ADot, c.NDot, t)
			if err != nil {
				return SatState{}, err
			}
			applyGroupDelay(s.nav, &st, c.Sv, c.MsgType, c.Toe)
			return st, nil
		}
		e, ok := s.nav.FindLatestEph(sv, t)
		if !ok {
			return SatState{}, newCoreErr(ErrEphemerisUnavailable, sv.String())
		}
		st, err := evalKepler(e, 0, 0, t)
		if err != nil {
			return SatState{}, err
		}
		applyGroupDelay(s.nav, &st, e.Sv, e.MsgType, e.Toe)
		return st, nil
	}
}

// applyGroupDelay subtracts the reference-code (index 0) TGD/BGD term cached
// by Nav.GroupDelay from a Kepler-family clock bias, per spec.md §4.2's
// "solver caches and uses group-delay parameters". Callers needing the
// second code's term for an iono-free combination read it off
// Nav.GroupDelay directly rather than through SatState.
func applyGroupDelay(nav *Nav, st *SatState, sv Sv, typ MsgType, toe Epoch) {
	tgd, ok := nav.GroupDelay(sv, typ, toe)
	if !ok {
		return
	}
	st.ClkBias -= tgd[0]
}

// solveOne performs transmission-time correction for one satellite at
// receiver time tr given a pseudorange (meters), per spec.md §4.3: subtract
// pr/c then pclk(ts), twice; evaluate at ts; rotate about Z by omega*(tr-ts)
// unconditionally.
func (s *EphemerisSolver) solveOne(sv Sv, tr Epoch, pr float64) (*EphemerisResult, error) {
	ts := tr
	if pr > 0 {
		ts = tr.Add(-pr / CLight)
	}
	var state SatState
	var err error
	for i := 0; i < 2; i++ {
		state, err = s.evalAt(sv, ts)
		if err != nil {
			return nil, err
		}
		ts = tr.Add(-pr/CLight - state.ClkBias)
	}
	state, err = s.evalAt(sv, ts)
	if err != nil {
		return nil, err
	}

	theta := sv.EarthRate() * tr.Sub(ts)
	sinT, cosT := math.Sincos(theta)
	rotated := rotZ(state.Pos, cosT, sinT)

	return &EphemerisResult{
		Sv:          sv,
		Tr:          tr,
		Pos:         Ecef{X: rotated[0], Y: rotated[1], Z: rotated[2]},
		Vel:         state.Vel,
		ClkBias:     state.ClkBias,
		ClkDrift:    state.ClkDrift,
		TransitTime: tr.Sub(ts),
		Variance:    state.Variance,
	}, nil
}

// SolveSvStatusObs computes and caches EphemerisResult for each satellite in
// obsMap that has a non-zero pseudorange, returning the solved list. Per
// spec.md §4.3's "solve_sv_status(tr, obs_map)".
func (s *EphemerisSolver) SolveSvStatusObs(tr Epoch, obsMap SatMap) []Sv {
	solved := make([]Sv, 0, len(obsMap))
	for sv, obs := range obsMap {
		pr := maxPseudorange(obs)
		if pr <= 0 {
			continue
		}
		res, err := s.solveOne(sv, tr, pr)
		if err != nil {
			continue
		}
		s.cache[sv] = res
		solved = append(solved, sv)
	}
	return solved
}

// SolveSvStatusList computes and caches EphemerisResult for each listed
// satellite without transmission-time correction, per spec.md §4.3's
// "solve_sv_status(tr, sv_list)" (pure orbit query).
func (s *EphemerisSolver) SolveSvStatusList(tr Epoch, svs []Sv) []Sv {
	solved := make([]Sv, 0, len(svs))
	for _, sv := range svs {
		res, err := s.solveOne(sv, tr, 0)
		if err != nil {
			continue
		}
		s.cache[sv] = res
		solved = append(solved, sv)
	}
	return solved
}

// Query returns the cached result for (tr, sv); the tr check simply guards
// against querying a stale cache from a prior epoch.
func (s *EphemerisSolver) Query(tr Epoch, sv Sv) (*EphemerisResult, bool) {
	r, ok := s.cache[sv]
	if !ok || !r.Tr.Equal(tr) {
		return nil, false
	}
	return r, true
}

// QueryAll returns every cached result at tr.
func (s *EphemerisSolver) QueryAll(tr Epoch) map[Sv]*EphemerisResult {
	out := make(map[Sv]*EphemerisResult)
	for sv, r := range s.cache {
		if r.Tr.Equal(tr) {
			out[sv] = r
		}
	}
	return out
}

func maxPseudorange(obs *GObs) float64 {
	var best float64
	for _, sigs := range obs.Sigs {
		for _, sg := range sigs {
			if sg.Pseudo > best {
				best = sg.Pseudo
			}
		}
	}
	return best
}
