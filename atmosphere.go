package gnsscore

import "math"

// nmfCoeff is one row of the NMF latitude-band table (average + amplitude
// components for the a/b/c hydrostatic-mapping series), ported from the
// teacher's common.go nmf coefficient tables (indexed by 15/30/45/60/75 deg
// latitude bands).
type nmfCoeff struct {
	avgA, avgB, avgC float64
	ampA, ampB, ampC float64
}

var nmfHydrostaticAvg = []nmfCoeff{
	{1.2769934e-3, 2.9153695e-3, 62.610505e-3, 0, 0, 0},
	{1.2683230e-3, 2.9152299e-3, 62.837393e-3, 0, 0, 0},
	{1.2465397e-3, 2.9288445e-3, 63.721774e-3, 0, 0, 0},
	{1.2196049e-3, 2.9022565e-3, 63.824265e-3, 0, 0, 0},
	{1.2045996e-3, 2.9024912e-3, 64.258455e-3, 0, 0, 0},
}

var nmfHydrostaticAmp = []nmfCoeff{
	{0, 0, 0, 0.0, 0.0, 0.0},
	{0, 0, 0, 1.2709626e-5, 2.1414979e-5, 9.0128400e-5},
	{0, 0, 0, 2.6523662e-5, 3.0160779e-5, 4.3497037e-5},
	{0, 0, 0, 3.4000452e-5, 7.2562722e-5, 84.795348e-5},
	{0, 0, 0, 4.1202191e-5, 11.723375e-5, 170.37206e-5},
}

const nmfHeightA, nmfHeightB, nmfHeightC = 2.53e-5, 5.49e-3, 1.14e-3

// nmfLatBands are the latitude-band centers the table rows above index.
var nmfLatBands = []float64{15, 30, 45, 60, 75}

func interpBand(lat float64, avg, amp []nmfCoeff, doy float64, southernPhaseFlip bool) (a, b, c float64) {
	absLat := math.Abs(lat) * R2D
	var idx int
	for idx = 0; idx < len(nmfLatBands)-1; idx++ {
		if absLat <= nmfLatBands[idx] {
			break
		}
	}
	lo, hi := idx, idx
	var frac float64
	switch {
	case absLat <= nmfLatBands[0]:
		lo, hi = 0, 0
	case absLat >= nmfLatBands[len(nmfLatBands)-1]:
		lo, hi = len(nmfLatBands)-1, len(nmfLatBands)-1
	default:
		for i := 0; i < len(nmfLatBands)-1; i++ {
			if absLat >= nmfLatBands[i] && absLat <= nmfLatBands[i+1] {
				lo, hi = i, i+1
				frac = (absLat - nmfLatBands[i]) / (nmfLatBands[i+1] - nmfLatBands[i])
				break
			}
		}
	}

	lerp := func(lo2, hi2, f float64) float64 { return lo2 + (hi2-lo2)*f }

	avgA := lerp(avg[lo].avgA, avg[hi].avgA, frac)
	avgB := lerp(avg[lo].avgB, avg[hi].avgB, frac)
	avgC := lerp(avg[lo].avgC, avg[hi].avgC, frac)
	ampA := lerp(amp[lo].ampA, amp[hi].ampA, frac)
	ampB := lerp(amp[lo].ampB, amp[hi].ampB, frac)
	ampC := lerp(amp[lo].ampC, amp[hi].ampC, frac)

	phase := 28.0
	if southernPhaseFlip {
		phase = 211.0
	}
	cosTerm := math.Cos(2 * Pi * (doy - phase) / 365.25)

	a = avgA - ampA*cosTerm
	b = avgB - ampB*cosTerm
	c = avgC - ampC*cosTerm
	return
}

// mapf evaluates the continued-fraction mapping function form used by NMF,
// ported from the teacher's mapf() in common.go.
func mapf(el, a, b, c float64) float64 {
	sinel := math.Sin(el)
	num := 1 + a/(1+b/(1+c))
	den := sinel + a/(sinel+b/(sinel+c))
	return num / den
}

// NmfMap returns (dryMap, wetMap) for the Niell Mapping Function at the
// given geodetic latitude/height, day-of-year, and elevation, ported from
// the teacher's nmf() in common.go.
func NmfMap(lat, height, doy, el float64) (dryMap, wetMap float64) {
	if el < 0 {
		return 0, 0
	}
	southern := lat < 0
	a, b, c := interpBand(lat, nmfHydrostaticAvg, nmfHydrostaticAmp, doy, southern)
	dryMap = mapf(el, a, b, c)

	heightKm := height / 1000.0
	aHt, bHt, cHt := nmfHeightA, nmfHeightB, nmfHeightC
	dryMap += (1/math.Sin(el) - mapf(el, aHt, bHt, cHt)) * heightKm

	// wet mapping uses one fixed coefficient set (the 15 deg band values) for
	// every latitude, with no latitude interpolation and no seasonal or
	// height terms.
	wa, wb, wc := 5.8021897e-4, 1.4275268e-3, 4.3472961e-5
	wetMap = mapf(el, wa, wb, wc)
	return
}

// SaastamoinenZTD returns the zenith hydrostatic (dry) and wet tropospheric
// delays in meters for a geodetic latitude/height, per spec.md §4.4's exact
// formulas.
func SaastamoinenZTD(lat, height float64) (dryZtd, wetZtd float64) {
	if height < -100 || height > 20000 {
		return 0, 0
	}
	t := 15.0 - 6.5e-3*height + 273.15
	p := 1013.25 * math.Pow(288.15/t, 5.255877)
	e := 6.108 * 0.7 * math.Exp((17.15*t-4684.0)/(t-38.45))

	dryZtd = 0.0022768 * p / (1 - 0.00266*math.Cos(2*lat) - 0.00028*height/1000.0)
	wetZtd = 0.002277 * (1255.0/t + 0.05) * e
	return
}

// TropDelay returns the total slant tropospheric delay (meters) given
// geodetic latitude/height, day-of-year, and satellite elevation, per
// spec.md §4.4: dry_map*dry_ztd + wet_map*wet_ztd.
func TropDelay(lat, height, doy, el float64) float64 {
	if height < -100 || height > 20000 || el < 0 {
		return 0
	}
	dryZtd, wetZtd := SaastamoinenZTD(lat, height)
	dryMap, wetMap := NmfMap(lat, height, doy, el)
	return dryMap*dryZtd + wetMap*wetZtd
}

// IonoModel computes ionospheric delay (meters, on L1) given a station
// position, satellite azimuth/elevation, and epoch. The "none" model
// returns 0 unconditionally; Klobuchar and STEC are injection points per
// spec.md §4.4.
type IonoModel interface {
	Delay(station Geodetic, az, el float64, t Epoch) float64
}

// NoneIono is the zero ionosphere model.
type NoneIono struct{}

func (NoneIono) Delay(Geodetic, float64, float64, Epoch) float64 { return 0 }

// KlobucharCoeffs holds the 8 broadcast ION-message coefficients (alpha0-3,
// beta0-3).
type KlobucharCoeffs struct {
	Alpha [4]float64
	Beta  [4]float64
}

// KlobucharIono implements the GPS broadcast Klobuchar model, ported from
// the teacher's IonModel in common.go.
type KlobucharIono struct {
	Coeffs KlobucharCoeffs
}

func (k KlobucharIono) Delay(station Geodetic, az, el float64, t Epoch) float64 {
	a := k.Coeffs.Alpha
	b := k.Coeffs.Beta
	if a == [4]float64{} && b == [4]float64{} {
		return 0
	}

	psi := 0.0137/(el/Pi+0.11) - 0.022
	phiI := station.Lat/Pi + psi*math.Cos(az)
	if phiI > 0.416 {
		phiI = 0.416
	} else if phiI < -0.416 {
		phiI = -0.416
	}
	lambdaI := station.Lon/Pi + psi*math.Sin(az)/math.Cos(phiI*Pi)
	phiM := phiI + 0.064*math.Cos((lambdaI-1.617)*Pi)

	_, tow := GpsTimeOfWeek(t)
	tLocal := 43200.0*lambdaI + tow
	tLocal = math.Mod(tLocal, 86400.0)
	if tLocal < 0 {
		tLocal += 86400.0
	}

	amp := a[0] + phiM*(a[1]+phiM*(a[2]+phiM*a[3]))
	if amp < 0 {
		amp = 0
	}
	per := b[0] + phiM*(b[1]+phiM*(b[2]+phiM*b[3]))
	if per < 72000.0 {
		per = 72000.0
	}

	x := 2 * Pi * (tLocal - 50400.0) / per
	var fFunc float64
	if math.Abs(x) < 1.57 {
		fFunc = 5e-9 + amp*(1-x*x/2+x*x*x*x/24)
	} else {
		fFunc = 5e-9
	}

	fSlant := 1.0 + 16.0*math.Pow(0.53-el/Pi, 3)
	return CLight * fSlant * fFunc
}

// StecIono is an injection point for an externally supplied slant TEC grid;
// unimplemented per spec.md §4.4, returns 0.
type StecIono struct {
	Grid map[string]float64
}

func (s StecIono) Delay(Geodetic, float64, float64, Epoch) float64 { return 0 }
