package gnsscore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// StationRef describes how a station's reference position is determined,
// per spec.md §4.7: a fixed configured ECEF position, or a float SPP fix
// with correspondingly larger variance.
type StationRef struct {
	Fixed    bool
	Pos      Ecef
	PosVar   float64 // used only when !Fixed
}

// RtkSystemPayload is the per-constellation working set C9 assembles each
// epoch, per spec.md §3's "RTK system payload".
type RtkSystemPayload struct {
	Constellation Constellation
	CommonView    []Sv // index 0 is the reference satellite
	UsableCodes   []ObsCode

	viewVectorsValid bool
	viewVectors      map[Sv][3]float64
}

// RtkEngine is C9: per-epoch double-difference WLS over (baseline, float
// ambiguities), ported in shape from the teacher's rtkpos.go ZDRes/DDRes/
// SelSat machinery, scoped down from its continuous Kalman filter to the
// per-epoch Gauss-Newton solve spec.md §4.7 specifies (see DESIGN.md).
type RtkEngine struct {
	Solver   *EphemerisSolver
	Atmo     IonoModel
	Rand     RandomHandler

	ElevationMask float64 // radians
	SnrMask       float64 // dB-Hz

	RatioThreshold float64

	// ambOrder fixes the (code, satellite) -> ambiguity-column mapping
	// across iterations within one epoch.
	ambOrder []ambSlot
}

type ambSlot struct {
	code ObsCode
	sv   Sv
}

// NewRtkEngine constructs an RTK engine with the given masks and AR ratio
// threshold (0 selects the spec default of 3.0).
func NewRtkEngine(solver *EphemerisSolver, atmo IonoModel, rand RandomHandler, elevMaskDeg, snrMask, ratioThreshold float64) *RtkEngine {
	if ratioThreshold <= 0 {
		ratioThreshold = 3.0
	}
	return &RtkEngine{
		Solver:         solver,
		Atmo:           atmo,
		Rand:           rand,
		ElevationMask:  elevMaskDeg * D2R,
		SnrMask:        snrMask,
		RatioThreshold: ratioThreshold,
	}
}

// SelectCommonView builds the per-constellation common-view satellite
// lists, reference-first by highest rover elevation, per spec.md §4.7.
func (e *RtkEngine) SelectCommonView(rover, base SatMap, roverGeo Geodetic, roverEcef Ecef, results map[Sv]*EphemerisResult) map[Constellation]*RtkSystemPayload {
	byConst := make(map[Constellation][]Sv)
	for sv := range rover {
		if _, ok := base[sv]; !ok {
			continue
		}
		res, ok := results[sv]
		if !ok {
			continue
		}
		_, el := res.AzEl(roverGeo, roverEcef)
		if el < e.ElevationMask {
			continue
		}
		if !passesSnrMask(rover[sv], e.SnrMask) {
			continue
		}
		byConst[sv.Constellation] = append(byConst[sv.Constellation], sv)
	}

	out := make(map[Constellation]*RtkSystemPayload)
	for cons, svs := range byConst {
		if len(svs) < 2 {
			continue
		}
		sort.Slice(svs, func(i, j int) bool {
			_, eli := results[svs[i]].AzEl(roverGeo, roverEcef)
			_, elj := results[svs[j]].AzEl(roverGeo, roverEcef)
			return eli > elj
		})
		ref := svs[0]
		rest := append([]Sv(nil), svs[1:]...)
		sort.Slice(rest, func(i, j int) bool { return rest[i].Less(rest[j]) })

		ordered := append([]Sv{ref}, rest...)
		codes := e.usableCodes(ordered, rover, base)
		out[cons] = &RtkSystemPayload{Constellation: cons, CommonView: ordered, UsableCodes: codes}
	}
	return out
}

func passesSnrMask(obs *GObs, mask float64) bool {
	if mask <= 0 || obs == nil {
		return true
	}
	for _, sigs := range obs.Sigs {
		for _, s := range sigs {
			if s.SNR >= mask {
				return true
			}
		}
	}
	return false
}

// usableCodes intersects, across every common-view satellite at both
// stations, the codes with non-zero pseudorange+carrier, valid, and passing
// the SNR mask, per spec.md §4.7's "Code selection".
func (e *RtkEngine) usableCodes(svs []Sv, rover, base SatMap) []ObsCode {
	counts := make(map[ObsCode]int)
	for _, sv := range svs {
		for _, station := range []SatMap{rover, base} {
			seen := make(map[ObsCode]bool)
			obs, ok := station[sv]
			if !ok {
				continue
			}
			for _, sigs := range obs.Sigs {
				for _, s := range sigs {
					if s.Pseudo > 0 && s.Phase > 0 && s.Valid && !s.CycleSlip() &&
						(e.SnrMask <= 0 || s.SNR >= e.SnrMask) {
						seen[s.Code] = true
					}
				}
			}
			for code := range seen {
				counts[code]++
			}
		}
	}
	var out []ObsCode
	need := 2 * len(svs) // must appear at both rover and base for every sv
	for code, c := range counts {
		if c >= need {
			out = append(out, code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ddRow is one double-difference observation row: code residual or
// carrier residual, against the reference satellite of its system.
type ddRow struct {
	isCarrier bool
	code      ObsCode
	sv        Sv // the non-reference satellite
	residual  float64
	losRef    [3]float64
	losSv     [3]float64
	varRef    float64
	varSv     float64
	lambda    float64
}

// buildDDRows assembles the double-difference pseudorange and carrier
// observations for one payload, per spec.md §4.7's "Double differences".
func (e *RtkEngine) buildDDRows(payload *RtkSystemPayload, rover, base SatMap, roverEcef, baseEcef Ecef, results map[Sv]*EphemerisResult) []ddRow {
	ref := payload.CommonView[0]
	refRes := results[ref]
	if refRes == nil {
		return nil
	}

	losFor := func(sv Sv, from Ecef) [3]float64 {
		p := results[sv].Pos
		dx, dy, dz := p.X-from.X, p.Y-from.Y, p.Z-from.Z
		r := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if r < 1 {
			return [3]float64{0, 0, 0}
		}
		return [3]float64{-dx / r, -dy / r, -dz / r}
	}
	rangeFrom := func(sv Sv, from Ecef) float64 {
		p := results[sv].Pos
		dx, dy, dz := p.X-from.X, p.Y-from.Y, p.Z-from.Z
		return math.Sqrt(dx*dx + dy*dy + dz*dz)
	}

	var rows []ddRow
	for _, sv := range payload.CommonView[1:] {
		res := results[sv]
		if res == nil {
			continue
		}

		rhoRoverM := rangeFrom(sv, roverEcef) - rangeFrom(ref, roverEcef)
		rhoBaseM := rangeFrom(sv, baseEcef) - rangeFrom(ref, baseEcef)
		rhoDD := rhoRoverM - rhoBaseM

		losSvRover := losFor(sv, roverEcef)
		losRefRover := losFor(ref, roverEcef)

		for _, code := range payload.UsableCodes {
			rSig, rok := findSig(rover[sv], code)
			bSig, bok := findSig(base[sv], code)
			rRefSig, rrok := findSig(rover[ref], code)
			bRefSig, brok := findSig(base[ref], code)
			if !rok || !bok || !rrok || !brok {
				continue
			}

			sdPrSv := rSig.Pseudo - bSig.Pseudo
			sdPrRef := rRefSig.Pseudo - bRefSig.Pseudo
			yCode := (sdPrSv - sdPrRef) - rhoDD

			lambda := Wavelength(code, payload.Constellation, 0)
			sdCarSv := (rSig.Phase - bSig.Phase) * lambda
			sdCarRef := (rRefSig.Phase - bRefSig.Phase) * lambda
			yCarrier := (sdCarSv - sdCarRef) - rhoDD

			varRef := rRefSig.VarCode + bRefSig.VarCode
			varSv := rSig.VarCode + bSig.VarCode

			rows = append(rows, ddRow{isCarrier: false, code: code, sv: sv, residual: yCode,
				losRef: losRefRover, losSv: losSvRover, varRef: varRef, varSv: varSv, lambda: lambda})
			rows = append(rows, ddRow{isCarrier: true, code: code, sv: sv, residual: yCarrier,
				losRef: losRefRover, losSv: losSvRover,
				varRef: rRefSig.VarPhase + bRefSig.VarPhase, varSv: rSig.VarPhase + bSig.VarPhase,
				lambda: lambda})
		}
	}
	return rows
}

// buildDDCovariance assembles the DD observation covariance per spec.md
// §4.7's "Weight matrix": each code's (and each code's carrier's) block over
// the n-1 non-reference satellites carries the shared reference-satellite
// variance off-diagonal, with diagonal sigma_ref^2 + sigma_m^2; distinct
// codes and the code/carrier split of one code are uncorrelated blocks. Some
// ObsCodes are shared across systems (see codeTable), so a block is
// identified by (system, code, isCarrier).
func buildDDCovariance(rows []ddRow) *mat.SymDense {
	m := len(rows)
	cov := mat.NewSymDense(m, nil)
	for i := range rows {
		cov.SetSym(i, i, rows[i].varRef+rows[i].varSv)
		for j := i + 1; j < m; j++ {
			if rows[i].sv.Constellation == rows[j].sv.Constellation && rows[i].code == rows[j].code && rows[i].isCarrier == rows[j].isCarrier {
				cov.SetSym(i, j, rows[i].varRef)
			}
		}
	}
	return cov
}

func findSig(obs *GObs, code ObsCode) (Sig, bool) {
	if obs == nil {
		return Sig{}, false
	}
	for _, sigs := range obs.Sigs {
		for _, s := range sigs {
			if s.Code == code {
				return s, true
			}
		}
	}
	return Sig{}, false
}

// RtkResult is the per-epoch RTK outcome: the float and (if accepted) fixed
// solution.
type RtkResult struct {
	Baseline    [3]float64
	FloatAmb    []float64
	AmbSlots    []ambSlot
	Fix         *AmbiguityFix
	Record      PvtSolutionRecord
}

// Solve runs the common-view selection, DD assembly, Gauss-Newton float
// solve, and LAMBDA fix for one epoch, per spec.md §4.7/§4.8.
func (e *RtkEngine) Solve(tr Epoch, rover, base SatMap, roverApprox Ecef, baseRef StationRef) (*RtkResult, error) {
	results := e.Solver.QueryAll(tr)
	roverGeo := Ecef2Pos(roverApprox)

	payloads := e.SelectCommonView(rover, base, roverGeo, roverApprox, results)
	if len(payloads) == 0 {
		return nil, newCoreErr(ErrWlsNaN, "no common-view satellites")
	}

	// stable slot order across systems: sort constellations for determinism.
	var systems []Constellation
	for c := range payloads {
		systems = append(systems, c)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i] < systems[j] })

	e.ambOrder = nil
	for _, c := range systems {
		p := payloads[c]
		for _, code := range p.UsableCodes {
			for _, sv := range p.CommonView[1:] {
				e.ambOrder = append(e.ambOrder, ambSlot{code: code, sv: sv})
			}
		}
	}
	na := len(e.ambOrder)
	if na == 0 {
		return nil, newCoreErr(ErrWlsNaN, "no usable codes")
	}

	baseline := [3]float64{0, 0, 0}
	amb := make([]float64, na)

	const maxIter = 8
	var dNorm float64

	for iter := 0; iter < maxIter; iter++ {
		curRover := Ecef{X: roverApprox.X + baseline[0], Y: roverApprox.Y + baseline[1], Z: roverApprox.Z + baseline[2]}

		var allRows []ddRow
		for _, c := range systems {
			allRows = append(allRows, e.buildDDRows(payloads[c], rover, base, curRover, baseRef.Pos, results)...)
		}
		if len(allRows) < na {
			return nil, newCoreErr(ErrWlsNaN, "underdetermined DD system")
		}

		m := len(allRows)
		nState := 3 + na
		jac := mat.NewDense(m, nState, nil)
		y := mat.NewVecDense(m, nil)

		slotIndex := make(map[ambSlot]int, na)
		for i, s := range e.ambOrder {
			slotIndex[s] = i
		}

		for i, row := range allRows {
			jac.Set(i, 0, row.losSv[0]-row.losRef[0])
			jac.Set(i, 1, row.losSv[1]-row.losRef[1])
			jac.Set(i, 2, row.losSv[2]-row.losRef[2])

			residual := row.residual
			if row.isCarrier {
				idx := slotIndex[ambSlot{code: row.code, sv: row.sv}]
				jac.Set(i, 3+idx, row.lambda)
				residual -= row.lambda * amb[idx]
			}
			y.SetVec(i, residual)
		}
		cov := buildDDCovariance(allRows)

		var winv mat.Dense
		if err := winv.Inverse(cov); err != nil {
			return nil, newCoreErr(ErrWlsNaN, "singular DD covariance")
		}

		var jtw mat.Dense
		jtw.Mul(jac.T(), &winv)
		var jtwj mat.Dense
		jtwj.Mul(&jtw, jac)
		var jtwy mat.VecDense
		jtwy.MulVec(&jtw, y)

		var normalInv mat.Dense
		if err := normalInv.Inverse(&jtwj); err != nil {
			return nil, newCoreErr(ErrWlsNaN, "singular RTK normal matrix")
		}
		var dx mat.VecDense
		dx.MulVec(&normalInv, &jtwy)

		for i := 0; i < 3; i++ {
			baseline[i] += dx.AtVec(i)
		}
		for i := 0; i < na; i++ {
			amb[i] += dx.AtVec(3 + i)
		}
		dNorm = math.Sqrt(dx.AtVec(0)*dx.AtVec(0) + dx.AtVec(1)*dx.AtVec(1) + dx.AtVec(2)*dx.AtVec(2))

		if dNorm < 1e-6 {
			break
		}
	}
	if dNorm >= 1e-6 {
		return nil, newCoreErr(ErrWlsNaN, "RTK baseline did not converge")
	}

	qxx, err := e.finalCovariance(payloads, systems, rover, base, roverApprox, baseRef, baseline, results)
	if err != nil {
		return nil, err
	}

	result := &RtkResult{Baseline: baseline, FloatAmb: amb, AmbSlots: append([]ambSlot(nil), e.ambOrder...)}

	fix, fixErr := ResolveAmbiguity(baseline[:], amb, qxx, e.RatioThreshold)
	result.Fix = fix
	rec := PvtSolutionRecord{Time: tr, Mode: ModeFloat}
	if fixErr == nil && fix != nil && fix.Accepted {
		rec.Mode = ModeFixed
		rec.Ecef = Ecef{X: roverApprox.X + fix.Baseline[0], Y: roverApprox.Y + fix.Baseline[1], Z: roverApprox.Z + fix.Baseline[2]}
		rec.ArRatio = fix.Ratio
	} else {
		rec.Ecef = Ecef{X: roverApprox.X + baseline[0], Y: roverApprox.Y + baseline[1], Z: roverApprox.Z + baseline[2]}
		if fix != nil {
			rec.ArRatio = fix.Ratio
		}
	}
	rec.ArThreshold = e.RatioThreshold
	rec.Geodetic = Ecef2Pos(rec.Ecef)
	result.Record = rec

	return result, nil
}

// finalCovariance re-derives the (baseline, ambiguity) joint covariance at
// the converged solution, used as Qxx input to ResolveAmbiguity.
func (e *RtkEngine) finalCovariance(payloads map[Constellation]*RtkSystemPayload, systems []Constellation, rover, base SatMap, roverApprox Ecef, baseRef StationRef, baseline [3]float64, results map[Sv]*EphemerisResult) (*mat.SymDense, error) {
	curRover := Ecef{X: roverApprox.X + baseline[0], Y: roverApprox.Y + baseline[1], Z: roverApprox.Z + baseline[2]}
	var allRows []ddRow
	for _, c := range systems {
		allRows = append(allRows, e.buildDDRows(payloads[c], rover, base, curRover, baseRef.Pos, results)...)
	}
	na := len(e.ambOrder)
	nState := 3 + na
	m := len(allRows)
	jac := mat.NewDense(m, nState, nil)

	slotIndex := make(map[ambSlot]int, na)
	for i, s := range e.ambOrder {
		slotIndex[s] = i
	}
	for i, row := range allRows {
		jac.Set(i, 0, row.losSv[0]-row.losRef[0])
		jac.Set(i, 1, row.losSv[1]-row.losRef[1])
		jac.Set(i, 2, row.losSv[2]-row.losRef[2])
		if row.isCarrier {
			idx := slotIndex[ambSlot{code: row.code, sv: row.sv}]
			jac.Set(i, 3+idx, row.lambda)
		}
	}
	cov := buildDDCovariance(allRows)
	var winv mat.Dense
	if err := winv.Inverse(cov); err != nil {
		return nil, newCoreErr(ErrWlsNaN, "singular DD covariance")
	}
	var jtw mat.Dense
	jtw.Mul(jac.T(), &winv)
	var jtwj mat.Dense
	jtwj.Mul(&jtw, jac)
	var normalInv mat.Dense
	if err := normalInv.Inverse(&jtwj); err != nil {
		return nil, newCoreErr(ErrWlsNaN, "singular RTK normal matrix")
	}
	qxx := mat.NewSymDense(nState, nil)
	for i := 0; i < nState; i++ {
		for j := 0; j <= i; j++ {
			qxx.SetSym(i, j, normalInv.At(i, j))
		}
	}
	return qxx, nil
}
