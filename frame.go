package gnsscore

import "math"

// Geodetic is a WGS-84 geodetic position (radians, radians, meters).
type Geodetic struct {
	Lat, Lon, Height float64
}

// Ecef is a Cartesian earth-centered earth-fixed position (meters).
type Ecef struct {
	X, Y, Z float64
}

// Enu is a local east-north-up displacement (meters).
type Enu struct {
	E, N, U float64
}

// Ecef2Pos converts ECEF coordinates to WGS-84 geodetic, ported from the
// teacher's Ecef2Pos (a closed-form Bowring-style iteration rather than the
// naive fixed-point one, converging in a handful of steps).
func Ecef2Pos(e Ecef) Geodetic {
	e2 := FeWGS84 * (2.0 - FeWGS84)
	r2 := SQR(e.X) + SQR(e.Y)
	v := ReWGS84
	z := e.Z
	var lat float64
	for i := 0; i < 10; i++ {
		zk := z
		sinp := z / math.Sqrt(r2+SQR(z))
		v = ReWGS84 / math.Sqrt(1.0-e2*SQR(sinp))
		z = e.Z + v*e2*sinp
		if math.Abs(z-zk) < 1e-4 {
			break
		}
	}
	if r2 > 1e-12 {
		lat = math.Atan(z / math.Sqrt(r2))
	} else if e.Z > 0 {
		lat = Pi / 2.0
	} else {
		lat = -Pi / 2.0
	}
	var lon float64
	if r2 > 1e-12 {
		lon = math.Atan2(e.Y, e.X)
	}
	var height float64
	if r2 > 1e-12 {
		height = math.Sqrt(r2+SQR(z)) - v
	} else {
		height = math.Abs(e.Z) - v
	}
	return Geodetic{Lat: lat, Lon: lon, Height: height}
}

// Pos2Ecef converts WGS-84 geodetic to ECEF, ported from the teacher's
// Pos2Ecef.
func Pos2Ecef(p Geodetic) Ecef {
	sinp, cosp := math.Sincos(p.Lat)
	sinl, cosl := math.Sincos(p.Lon)
	e2 := FeWGS84 * (2.0 - FeWGS84)
	v := ReWGS84 / math.Sqrt(1.0-e2*sinp*sinp)
	return Ecef{
		X: (v + p.Height) * cosp * cosl,
		Y: (v + p.Height) * cosp * sinl,
		Z: (v*(1.0-e2) + p.Height) * sinp,
	}
}

// enuBasis returns the 3x3 row-major rotation matrix E such that
// enu = E * ecefVector, ported from the teacher's XYZ2Enu.
func enuBasis(p Geodetic) [9]float64 {
	sinp, cosp := math.Sincos(p.Lat)
	sinl, cosl := math.Sincos(p.Lon)
	return [9]float64{
		-sinl, cosl, 0,
		-sinp * cosl, -sinp * sinl, cosp,
		cosp * cosl, cosp * sinl, sinp,
	}
}

func matVec3(m [9]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

func matTVec3(m [9]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

// Ecef2Enu projects an ECEF displacement vector (not an absolute position)
// into the local ENU frame of the reference geodetic position, ported from
// the teacher's Ecef2Enu.
func Ecef2Enu(origin Geodetic, d Ecef) Enu {
	e := enuBasis(origin)
	v := matVec3(e, [3]float64{d.X, d.Y, d.Z})
	return Enu{E: v[0], N: v[1], U: v[2]}
}

// Enu2Ecef is the inverse of Ecef2Enu, ported from the teacher's Enu2Ecef.
func Enu2Ecef(origin Geodetic, d Enu) Ecef {
	e := enuBasis(origin)
	v := matTVec3(e, [3]float64{d.E, d.N, d.U})
	return Ecef{X: v[0], Y: v[1], Z: v[2]}
}

// XYZ2Enu converts two absolute ECEF positions (reference, target) into the
// ENU displacement of target relative to reference.
func XYZ2Enu(origin Geodetic, refEcef, target Ecef) Enu {
	d := Ecef{X: target.X - refEcef.X, Y: target.Y - refEcef.Y, Z: target.Z - refEcef.Z}
	return Ecef2Enu(origin, d)
}

// Cov3 is a symmetric 3x3 covariance matrix stored row-major.
type Cov3 [9]float64

// Cov2Enu rotates an ECEF covariance matrix into the ENU frame at the given
// geodetic position: Σ_enu = E Σ_ecef Eᵀ, ported from the teacher's Cov2Enu.
func Cov2Enu(origin Geodetic, p Cov3) Cov3 {
	e := enuBasis(origin)
	return rotateCov(e, p)
}

// Cov2Ecef is the inverse rotation: Σ_ecef = Eᵀ Σ_enu E, ported from the
// teacher's Cov2Ecef.
func Cov2Ecef(origin Geodetic, q Cov3) Cov3 {
	e := enuBasis(origin)
	et := transpose3(e)
	return rotateCov(et, q)
}

func transpose3(m [9]float64) [9]float64 {
	return [9]float64{m[0], m[3], m[6], m[1], m[4], m[7], m[2], m[5], m[8]}
}

func mul3(a, b [9]float64) [9]float64 {
	var r [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[i*3+k] * b[k*3+j]
			}
			r[i*3+j] = s
		}
	}
	return r
}

// rotateCov computes r * cov * transpose(r).
func rotateCov(r [9]float64, cov Cov3) Cov3 {
	rc := mul3(r, [9]float64(cov))
	rt := transpose3(r)
	out := mul3(rc, rt)
	return Cov3(out)
}

// SatAzEl computes satellite azimuth and elevation (radians) as seen from a
// receiver position, ported from the teacher's SatAzel.
func SatAzEl(recvGeodetic Geodetic, recvEcef, satEcef Ecef) (az, el float64) {
	enu := XYZ2Enu(recvGeodetic, recvEcef, satEcef)
	r := math.Sqrt(SQR(enu.E) + SQR(enu.N))
	if r < 1e-12 {
		return 0, Pi / 2.0
	}
	az = math.Atan2(enu.E, enu.N)
	if az < 0 {
		az += 2 * Pi
	}
	el = math.Atan2(enu.U, r)
	return
}
