package gnsscore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const lambdaSearchLoopMax = 5000

// ambiguitySearchState carries the LD-decomposed, Z-reduced system through
// reduction and search, ported from the teacher's lamda.go (LD/Gauss/Perm/
// Reduction/Search/Lambda).
type ambiguitySearchState struct {
	n int
	l []float64 // lower-unit-triangular, row-major n x n
	d []float64 // diagonal, length n
	z []float64 // integer transform, row-major n x n
}

// ldDecompose factors Qaa = L^T D L with L unit-lower-triangular and D
// diagonal positive, ported from the teacher's LD in lamda.go. Returns
// ErrAmbiguityInitFail if any diagonal entry is non-positive.
func ldDecompose(qaa *mat.SymDense) (*ambiguitySearchState, error) {
	n := qaa.SymmetricDim()
	a := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i*n+j] = qaa.At(i, j)
		}
	}
	d := make([]float64, n)
	l := make([]float64, n*n)

	for i := n - 1; i >= 0; i-- {
		d[i] = a[i*n+i]
		if d[i] <= 0 {
			return nil, newCoreErr(ErrAmbiguityInitFail, "non-positive diagonal")
		}
		sqrtD := math.Sqrt(d[i])
		for j := 0; j <= i; j++ {
			l[i*n+j] = a[i*n+j] / sqrtD
		}
		for j := 0; j <= i-1; j++ {
			for k := 0; k <= j; k++ {
				a[j*n+k] -= l[i*n+j] * l[i*n+k]
			}
		}
		for j := 0; j <= i; j++ {
			l[i*n+j] /= l[i*n+i]
		}
	}

	z := make([]float64, n*n)
	for i := 0; i < n; i++ {
		z[i*n+i] = 1
	}

	return &ambiguitySearchState{n: n, l: l, d: d, z: z}, nil
}

// gaussTransform applies an integer Gauss transform to zero L[i][j] by
// rounding, updating Z to track the accumulated integer transform, ported
// from the teacher's Gauss.
func (s *ambiguitySearchState) gaussTransform(i, j int) {
	n := s.n
	mu := math.Round(s.l[i*n+j])
	if mu == 0 {
		return
	}
	for k := i; k < n; k++ {
		s.l[k*n+j] -= mu * s.l[k*n+i]
	}
	for k := 0; k < n; k++ {
		s.z[k*n+j] -= mu * s.z[k*n+i]
	}
}

// permute swaps columns j, j+1 of L/D (with the conditional update of
// L[j+1][j]) and the corresponding Z columns, ported from the teacher's
// Perm.
func (s *ambiguitySearchState) permute(j int, delta float64) {
	n := s.n
	dj, dj1 := s.d[j], s.d[j+1]
	lj1j := s.l[(j+1)*n+j]

	eta := dj / delta
	lam := dj1 * lj1j / delta
	s.d[j] = eta * dj1
	s.d[j+1] = delta

	s.l[(j+1)*n+j] = lam
	for k := 0; k <= j-1; k++ {
		a0 := s.l[j*n+k]
		a1 := s.l[(j+1)*n+k]
		s.l[j*n+k] = -lj1j*a0 + a1
		s.l[(j+1)*n+k] = eta*a0 + lam*a1
	}
	for k := j + 2; k < n; k++ {
		s.l[k*n+j], s.l[k*n+j+1] = s.l[k*n+j+1], s.l[k*n+j]
	}
	for k := 0; k < n; k++ {
		s.z[k*n+j], s.z[k*n+j+1] = s.z[k*n+j+1], s.z[k*n+j]
	}
}

// reduce runs the integer Gauss/permutation reduction loop to completion,
// ported from the teacher's Reduction.
func (s *ambiguitySearchState) reduce() {
	n := s.n
	j := n - 2
	k := n - 2
	for j >= 0 {
		if j <= k {
			for i := j + 1; i < n; i++ {
				s.gaussTransform(i, j)
			}
		}
		delta := s.d[j] + s.l[(j+1)*n+j]*s.l[(j+1)*n+j]*s.d[j+1]
		if delta+1e-6 < s.d[j+1] {
			s.permute(j, delta)
			k = j
			if j < n-2 {
				j = n - 2
			}
			j++
		}
		j--
	}
}

// searchResult is the output of the modified LAMBDA tree search: the two
// best integer candidates (columns of E) and their squared residual norms.
type searchResult struct {
	e [2][]float64
	s [2]float64
}

// lambdaCandidate pairs one leaf's integer vector with its squared residual
// norm so the two travel together through sorting.
type lambdaCandidate struct {
	dist float64
	z    []float64
}

// search performs the modified LAMBDA integer least-squares search over
// the reduced ambiguity vector zHat, ported from the teacher's Search in
// lamda.go (mlambda). Returns ErrAmbiguitySearchOverflow past the node cap.
func (st *ambiguitySearchState) search(zHat []float64, m int) (*searchResult, error) {
	n := st.n
	step := make([]float64, n)
	dist := make([]float64, n+1)
	zb := make([]float64, n)
	z := make([]float64, n)

	candidates := make([]lambdaCandidate, 0, 8)

	maxDist := math.Inf(1)
	k := n - 1
	dist[n] = 0
	zb[n-1] = zHat[n-1]
	z[n-1] = math.Round(zb[n-1])
	y := zb[n-1] - z[n-1]
	if y < 0 {
		step[n-1] = -1
	} else {
		step[n-1] = 1
	}

	nodes := 0
	for {
		nodes++
		if nodes > lambdaSearchLoopMax {
			return nil, newCoreErr(ErrAmbiguitySearchOverflow, "node cap exceeded")
		}
		newdist := dist[k+1] + y*y/st.d[k]
		if newdist < maxDist {
			if k != 0 {
				k--
				dist[k+1] = newdist
				var sum float64
				for i := k + 1; i < n; i++ {
					sum += st.l[i*n+k] * (zb[i] - z[i])
				}
				zb[k] = zHat[k] - sum
				z[k] = math.Round(zb[k])
				y = zb[k] - z[k]
				if y < 0 {
					step[k] = -1
				} else {
					step[k] = 1
				}
			} else {
				candRow := make([]float64, n)
				copy(candRow, z)
				candidates = append(candidates, lambdaCandidate{dist: newdist, z: candRow})
				if len(candidates) >= m {
					sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
					maxDist = candidates[len(candidates)-1].dist
				}
				z[0] += step[0]
				y = zb[0] - z[0]
				if step[0] < 0 {
					step[0] = -step[0] + 1
				} else {
					step[0] = -step[0] - 1
				}
			}
		} else {
			if k == n-1 {
				break
			}
			k++
			z[k] += step[k]
			y = zb[k] - z[k]
			if step[k] < 0 {
				step[k] = -step[k] + 1
			} else {
				step[k] = -step[k] - 1
			}
		}
	}

	if len(candidates) < 2 {
		return nil, newCoreErr(ErrAmbiguitySearchOverflow, "insufficient candidates")
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	res := &searchResult{}
	res.e[0] = candidates[0].z
	res.e[1] = candidates[1].z
	res.s[0] = candidates[0].dist
	res.s[1] = candidates[1].dist
	return res, nil
}

// AmbiguityFix is the output of ResolveAmbiguity: fixed baseline, fixed
// ambiguities, their covariance, and the acceptance ratio, per spec.md §4.8.
type AmbiguityFix struct {
	Baseline    [3]float64
	BaselineCov [9]float64
	Ambiguities []float64
	Ratio       float64
	Accepted    bool
}

// ResolveAmbiguity runs the LAMBDA algorithm on a float baseline/ambiguity
// solution, per spec.md §4.8: LD decomposition of Qaa, integer Gauss
// reduction, modified LAMBDA search, ratio test, baseline recovery.
func ResolveAmbiguity(baseline []float64, ambFloat []float64, qxx *mat.SymDense, ratioThreshold float64) (*AmbiguityFix, error) {
	nb := len(baseline)
	na := len(ambFloat)
	n := nb + na
	if qxx.SymmetricDim() != n {
		return nil, newCoreErr(ErrAmbiguityInitFail, "covariance dimension mismatch")
	}

	qaa := mat.NewSymDense(na, nil)
	for i := 0; i < na; i++ {
		for j := 0; j <= i; j++ {
			qaa.SetSym(i, j, qxx.At(nb+i, nb+j))
		}
	}
	qba := mat.NewDense(nb, na, nil)
	for i := 0; i < nb; i++ {
		for j := 0; j < na; j++ {
			qba.Set(i, j, qxx.At(i, nb+j))
		}
	}
	qbb := mat.NewSymDense(nb, nil)
	for i := 0; i < nb; i++ {
		for j := 0; j <= i; j++ {
			qbb.SetSym(i, j, qxx.At(i, j))
		}
	}

	st, err := ldDecompose(qaa)
	if err != nil {
		return nil, err
	}
	st.reduce()

	// z = Z^T a
	zHat := make([]float64, na)
	for j := 0; j < na; j++ {
		var sum float64
		for i := 0; i < na; i++ {
			sum += st.z[i*na+j] * ambFloat[i]
		}
		zHat[j] = sum
	}

	result, err := st.search(zHat, 2)
	if err != nil {
		return nil, err
	}

	ratio := math.Inf(1)
	if result.s[0] > 1e-12 {
		ratio = result.s[1] / result.s[0]
	}
	accepted := ratio >= ratioThreshold

	// recover F = E * (Z^T)^-1 : solve Z^T F = E for F, i.e. F = (Z^-1)^T E
	zMat := mat.NewDense(na, na, st.z)
	var zInv mat.Dense
	fixedAmb := make([]float64, na)
	if err := zInv.Inverse(zMat); err == nil {
		zInvT := zInv.T()
		eVec := mat.NewVecDense(na, result.e[0])
		var fVec mat.VecDense
		fVec.MulVec(zInvT, eVec)
		for i := 0; i < na; i++ {
			fixedAmb[i] = math.Round(fVec.AtVec(i))
		}
	} else {
		copy(fixedAmb, result.e[0])
	}

	fix := &AmbiguityFix{Ambiguities: fixedAmb, Ratio: ratio, Accepted: accepted}
	if !accepted {
		return fix, newCoreErr(ErrAmbiguityRatioRejected, "ratio below threshold")
	}

	// b_fixed = b_float - Qba * Qaa^-1 * (a_float - a_fixed)
	qaaDense := mat.NewDense(na, na, nil)
	for i := 0; i < na; i++ {
		for j := 0; j < na; j++ {
			qaaDense.Set(i, j, qaa.At(i, j))
		}
	}
	var qaaInv mat.Dense
	if err := qaaInv.Inverse(qaaDense); err != nil {
		return nil, newCoreErr(ErrAmbiguityInitFail, "singular Qaa")
	}

	diff := mat.NewVecDense(na, nil)
	for i := 0; i < na; i++ {
		diff.SetVec(i, ambFloat[i]-fixedAmb[i])
	}
	var qaaInvDiff mat.VecDense
	qaaInvDiff.MulVec(&qaaInv, diff)
	var correction mat.VecDense
	correction.MulVec(qba, &qaaInvDiff)

	for i := 0; i < nb; i++ {
		fix.Baseline[i] = baseline[i] - correction.AtVec(i)
	}

	// Qbb_fixed = Qbb - Qba * Qaa^-1 * Qba^T
	var qbaQaaInv mat.Dense
	qbaQaaInv.Mul(qba, &qaaInv)
	var qbaQaaInvQbaT mat.Dense
	qbaQaaInvQbaT.Mul(&qbaQaaInv, qba.T())

	for i := 0; i < nb && i < 3; i++ {
		for j := 0; j < nb && j < 3; j++ {
			fix.BaselineCov[i*3+j] = qbb.At(i, j) - qbaQaaInvQbaT.At(i, j)
		}
	}

	return fix, nil
}
