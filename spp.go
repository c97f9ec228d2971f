package gnsscore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SolutionMode tags the kind of fix a PvtSolutionRecord carries, per
// spec.md §6.
type SolutionMode uint8

const (
	ModeNone SolutionMode = iota
	ModeFixed
	ModeFloat
	ModeSBAS
	ModeDGPS
	ModeSingle
	ModePPP
	ModeDRLoose
	ModeDRTight
)

func (m SolutionMode) String() string {
	switch m {
	case ModeFixed:
		return "FIXED"
	case ModeFloat:
		return "FLOAT"
	case ModeSBAS:
		return "SBAS"
	case ModeDGPS:
		return "DGPS"
	case ModeSingle:
		return "SINGLE"
	case ModePPP:
		return "PPP"
	case ModeDRLoose:
		return "DR_LOOSE"
	case ModeDRTight:
		return "DR_TIGHT"
	default:
		return "NONE"
	}
}

// PvtSolutionRecord is the per-epoch output record, per spec.md §3.
type PvtSolutionRecord struct {
	Time       Epoch
	Ecef       Ecef
	Geodetic   Geodetic
	Vel        [3]float64
	CovPos     [6]float64 // upper-triangular: xx,xy,xz,yy,yz,zz
	CovVel     [6]float64
	ClockBias  map[Constellation]float64
	Mode       SolutionMode
	NumSats    int
	SigmaUnitWeight float64
	ArRatio    float64
	ArThreshold float64
}

// SppEngine is C8: iterative weighted least squares on position plus
// per-system clock bias, then velocity plus clock-rate from Doppler. Ported
// from the teacher's EstimatePos/Residuals/ValSol/EstVel in pntpos.go.
type SppEngine struct {
	Solver *EphemerisSolver
	Atmo   IonoModel
	Rand   RandomHandler

	// ClockIndex assigns a state-vector column (relative to index 3) to
	// each constellation seen so far, configured at construction per
	// spec.md §4.6 ("the per-system clock index is assigned at
	// configuration").
	ClockIndex map[Constellation]int
}

// NewSppEngine constructs an SPP engine with the given clock-index
// assignment (constellation -> column offset, 0-based, added to 3).
func NewSppEngine(solver *EphemerisSolver, atmo IonoModel, rand RandomHandler, clockIndex map[Constellation]int) *SppEngine {
	if clockIndex == nil {
		clockIndex = make(map[Constellation]int)
	}
	return &SppEngine{Solver: solver, Atmo: atmo, Rand: rand, ClockIndex: clockIndex}
}

type sppSignal struct {
	sv  Sv
	sig Sig
	res *EphemerisResult
}

// gatherSignals collects one usable pseudorange signal per satellite (the
// first valid, non-zero-pseudorange signal found across bands).
func gatherSignals(obsMap SatMap, results map[Sv]*EphemerisResult) []sppSignal {
	out := make([]sppSignal, 0, len(obsMap))
	svs := make([]Sv, 0, len(obsMap))
	for sv := range obsMap {
		svs = append(svs, sv)
	}
	sort.Slice(svs, func(i, j int) bool { return svs[i].Less(svs[j]) })

	for _, sv := range svs {
		res, ok := results[sv]
		if !ok {
			continue
		}
		obs := obsMap[sv]
		for _, band := range []Band{BandL1, BandL2, BandL5, BandL6, BandL7} {
			for _, sg := range obs.Sigs[band] {
				if sg.Pseudo > 0 && sg.Valid {
					out = append(out, sppSignal{sv: sv, sig: sg, res: res})
					break
				}
			}
			if len(out) > 0 && out[len(out)-1].sv == sv {
				break
			}
		}
	}
	return out
}

// Solve runs the position step then the velocity step, per spec.md §4.6.
func (e *SppEngine) Solve(tr Epoch, obsMap SatMap, approxPos Ecef) (*PvtSolutionRecord, error) {
	results := e.Solver.QueryAll(tr)
	sigs := gatherSignals(obsMap, results)
	if len(sigs) < 4 {
		return nil, newCoreErr(ErrWlsNaN, "insufficient satellites")
	}

	// assign any not-yet-seen constellation a fresh clock column.
	for _, s := range sigs {
		if _, ok := e.ClockIndex[s.sv.Constellation]; !ok {
			e.ClockIndex[s.sv.Constellation] = len(e.ClockIndex)
		}
	}
	nClk := len(e.ClockIndex)
	nState := 3 + nClk

	x := make([]float64, nState)
	x[0], x[1], x[2] = approxPos.X, approxPos.Y, approxPos.Z

	const maxIter = 10
	var sigmaUW float64
	var dxNorm float64
	var posCov [6]float64
	converged := false

	for iter := 0; iter < maxIter; iter++ {
		rxEcef := Ecef{X: x[0], Y: x[1], Z: x[2]}
		rxGeo := Ecef2Pos(rxEcef)
		_, doy := dayOfYear(tr)

		m := len(sigs)
		jac := mat.NewDense(m, nState, nil)
		yv := mat.NewVecDense(m, nil)
		w := mat.NewDiagDense(m, nil)

		for i, s := range sigs {
			dx := s.res.Pos.X - x[0]
			dy := s.res.Pos.Y - x[1]
			dz := s.res.Pos.Z - x[2]
			rng := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if rng < 1 {
				return nil, newCoreErr(ErrWlsNaN, "degenerate range")
			}

			var trop, iono float64
			if iter > 0 {
				az, el := SatAzEl(rxGeo, rxEcef, s.res.Pos)
				trop = TropDelay(rxGeo.Lat, rxGeo.Height, doy, el)
				iono = e.Atmo.Delay(rxGeo, az, el, tr)
			}

			clkCol := 3 + e.ClockIndex[s.sv.Constellation]
			predicted := rng + x[clkCol] - CLight*s.res.ClkBias + trop + iono

			jac.Set(i, 0, -dx/rng)
			jac.Set(i, 1, -dy/rng)
			jac.Set(i, 2, -dz/rng)
			jac.Set(i, clkCol, 1.0)

			yv.SetVec(i, s.sig.Pseudo-predicted)

			variance := s.sig.VarCode
			if variance <= 0 {
				variance = 1.0
			}
			w.SetDiag(i, 1.0/variance)
		}

		var jtw mat.Dense
		jtw.Mul(jac.T(), w)
		var jtwj mat.Dense
		jtwj.Mul(&jtw, jac)
		var jtwy mat.VecDense
		jtwy.MulVec(&jtw, yv)

		var normal mat.Dense
		normal.CloneFrom(&jtwj)
		var inv mat.Dense
		if err := inv.Inverse(&normal); err != nil {
			return nil, newCoreErr(ErrWlsNaN, "singular normal matrix")
		}
		for i := 0; i < nState; i++ {
			if math.IsNaN(inv.At(i, i)) || math.IsInf(inv.At(i, i), 0) {
				return nil, newCoreErr(ErrWlsNaN, "non-finite cofactor")
			}
		}

		var dx mat.VecDense
		dx.MulVec(&inv, &jtwy)

		dxNorm = math.Sqrt(dx.AtVec(0)*dx.AtVec(0) + dx.AtVec(1)*dx.AtVec(1) + dx.AtVec(2)*dx.AtVec(2))
		for i := 0; i < nState; i++ {
			x[i] += dx.AtVec(i)
		}

		if dxNorm < 1e-6 {
			converged = true
			var yr mat.VecDense
			yr.MulVec(jac, &dx)
			var resid mat.VecDense
			resid.SubVec(yv, &yr)
			var wr mat.VecDense
			wr.MulVec(w, &resid)
			ytwy := mat.Dot(&resid, &wr)
			if m > nState {
				sigmaUW = ytwy / float64(m-nState)
			}
			scale := sigmaUW
			if scale <= 0 {
				scale = 1
			}
			posCov = [6]float64{
				inv.At(0, 0), inv.At(0, 1), inv.At(0, 2),
				inv.At(1, 1), inv.At(1, 2),
				inv.At(2, 2),
			}
			for i := range posCov {
				posCov[i] *= scale
			}
			break
		}
	}

	if !converged && dxNorm > 1.0 {
		return nil, newCoreErr(ErrWlsNaN, "position did not converge")
	}

	rxEcef := Ecef{X: x[0], Y: x[1], Z: x[2]}
	rxGeo := Ecef2Pos(rxEcef)

	clockBias := make(map[Constellation]float64, nClk)
	for cons, idx := range e.ClockIndex {
		clockBias[cons] = x[3+idx] / CLight
	}

	vel, velCov, velErr := e.solveVelocity(sigs, rxEcef)
	if velErr != nil {
		vel = [3]float64{}
		velCov = [6]float64{}
	}

	return &PvtSolutionRecord{
		Time:            tr,
		Ecef:            rxEcef,
		Geodetic:        rxGeo,
		Vel:             vel,
		CovPos:          posCov,
		CovVel:          velCov,
		ClockBias:       clockBias,
		Mode:            ModeSingle,
		NumSats:         len(sigs),
		SigmaUnitWeight: sigmaUW,
	}, nil
}

// solveVelocity runs the Doppler velocity step, per spec.md §4.6. The
// returned covariance is the upper-triangular (xx,xy,xz,yy,yz,zz) velocity
// cofactor block of the unweighted normal matrix's inverse.
func (e *SppEngine) solveVelocity(sigs []sppSignal, rxEcef Ecef) ([3]float64, [6]float64, error) {
	type dopObs struct {
		los   [3]float64
		rate  float64
	}
	var rows []dopObs
	for _, s := range sigs {
		if s.sig.Doppler == 0 {
			continue
		}
		lambda := Wavelength(s.sig.Code, s.sv.Constellation, 0)
		if lambda <= 0 {
			continue
		}
		rangeRate := -s.sig.Doppler * lambda

		dx := s.res.Pos.X - rxEcef.X
		dy := s.res.Pos.Y - rxEcef.Y
		dz := s.res.Pos.Z - rxEcef.Z
		rng := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if rng < 1 {
			continue
		}
		los := [3]float64{-dx / rng, -dy / rng, -dz / rng}

		satRangeRateContribution := (s.res.Vel[0]*dx + s.res.Vel[1]*dy + s.res.Vel[2]*dz) / rng
		rows = append(rows, dopObs{los: los, rate: rangeRate + satRangeRateContribution - CLight*s.res.ClkDrift})
	}
	if len(rows) < 4 {
		return [3]float64{}, [6]float64{}, newCoreErr(ErrWlsNaN, "insufficient doppler observations")
	}

	m := len(rows)
	jac := mat.NewDense(m, 4, nil)
	yv := mat.NewVecDense(m, nil)
	for i, r := range rows {
		jac.Set(i, 0, r.los[0])
		jac.Set(i, 1, r.los[1])
		jac.Set(i, 2, r.los[2])
		jac.Set(i, 3, 1.0)
		yv.SetVec(i, r.rate)
	}
	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return [3]float64{}, [6]float64{}, newCoreErr(ErrWlsNaN, "singular velocity normal matrix")
	}
	var jty mat.VecDense
	jty.MulVec(jac.T(), yv)
	var sol mat.VecDense
	sol.MulVec(&inv, &jty)

	cov := [6]float64{
		inv.At(0, 0), inv.At(0, 1), inv.At(0, 2),
		inv.At(1, 1), inv.At(1, 2),
		inv.At(2, 2),
	}
	return [3]float64{sol.AtVec(0), sol.AtVec(1), sol.AtVec(2)}, cov, nil
}

// dayOfYear returns (year, day-of-year) for an Epoch.
func dayOfYear(t Epoch) (int, float64) {
	year, mon, day, _, _, _ := t.Calendar()
	cum := [...]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}
	leap := 0
	if year%4 == 0 && mon > 2 {
		leap = 1
	}
	return year, float64(cum[mon-1] + day + leap)
}
