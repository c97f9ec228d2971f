package gnsscore

import (
	"fmt"
	"io"
	"sort"
)

// CoordStyle selects the coordinate representation used when serializing a
// PvtSolutionRecord, per spec.md §6.
type CoordStyle uint8

const (
	CoordXYZ CoordStyle = iota
	CoordBLH
	CoordENU
)

// AngleStyle selects how latitude/longitude/azimuth values are rendered.
type AngleStyle uint8

const (
	AngleRad AngleStyle = iota
	AngleDeg
	AngleDMS
)

// TimeStyle selects which time scale timestamps are rendered in.
type TimeStyle uint8

const (
	TimeUTC TimeStyle = iota
	TimeGPS
	TimeBDS
)

// SolutionWriter serializes PvtSolutionRecord values to a self-describing
// text stream, per spec.md §6's output requirements, ported in spirit from
// the teacher's OutSolHeader/OutSol in solution.go.
type SolutionWriter struct {
	w          io.Writer
	Coord      CoordStyle
	Angle      AngleStyle
	Time       TimeStyle
	EnuOrigin  Geodetic
	headerDone bool
}

// NewSolutionWriter constructs a writer over w with the given output style.
func NewSolutionWriter(w io.Writer, coord CoordStyle, angle AngleStyle, timeStyle TimeStyle, enuOrigin Geodetic) *SolutionWriter {
	return &SolutionWriter{w: w, Coord: coord, Angle: angle, Time: timeStyle, EnuOrigin: enuOrigin}
}

func (s *SolutionWriter) writeHeader() {
	if s.headerDone {
		return
	}
	fmt.Fprintf(s.w, "%% time%s  x/lat  y/lon  z/h  mode  ns  sigma0  ar-ratio  ar-thresh  vx  vy  vz  clk...\n", timeTag(s.Time))
	s.headerDone = true
}

func timeTag(t TimeStyle) string {
	switch t {
	case TimeGPS:
		return "(gpst)"
	case TimeBDS:
		return "(bdt)"
	default:
		return "(utc)"
	}
}

func (s *SolutionWriter) renderTime(t Epoch) string {
	switch s.Time {
	case TimeGPS:
		gps := UtcToGps(t)
		week, tow := GpsTimeOfWeek(gps)
		return fmt.Sprintf("%d %.3f", week, tow)
	case TimeBDS:
		bds := GpsToBds(UtcToGps(t))
		week, tow := BdsTimeOfWeek(bds)
		return fmt.Sprintf("%d %.3f", week, tow)
	default:
		return t.Format("")
	}
}

func (s *SolutionWriter) renderAngle(rad float64) string {
	switch s.Angle {
	case AngleDeg:
		return fmt.Sprintf("%.9f", rad*R2D)
	case AngleDMS:
		deg := rad * R2D
		sign := 1.0
		if deg < 0 {
			sign = -1
			deg = -deg
		}
		d := int(deg)
		m := int((deg - float64(d)) * 60)
		sec := (deg - float64(d) - float64(m)/60) * 3600
		return fmt.Sprintf("%d:%02d:%06.3f", int(sign)*d, m, sec)
	default:
		return fmt.Sprintf("%.12f", rad)
	}
}

// Write serializes one solution record as a single line.
func (s *SolutionWriter) Write(rec PvtSolutionRecord) {
	s.writeHeader()

	var c1, c2, c3 string
	switch s.Coord {
	case CoordBLH:
		c1 = s.renderAngle(rec.Geodetic.Lat)
		c2 = s.renderAngle(rec.Geodetic.Lon)
		c3 = fmt.Sprintf("%.4f", rec.Geodetic.Height)
	case CoordENU:
		enu := Ecef2Enu(s.EnuOrigin, Ecef{X: rec.Ecef.X, Y: rec.Ecef.Y, Z: rec.Ecef.Z})
		c1 = fmt.Sprintf("%.4f", enu.E)
		c2 = fmt.Sprintf("%.4f", enu.N)
		c3 = fmt.Sprintf("%.4f", enu.U)
	default:
		c1 = fmt.Sprintf("%.4f", rec.Ecef.X)
		c2 = fmt.Sprintf("%.4f", rec.Ecef.Y)
		c3 = fmt.Sprintf("%.4f", rec.Ecef.Z)
	}

	fmt.Fprintf(s.w, "%s %s %s %s %s %d %.4f %.2f %.2f %.4f %.4f %.4f",
		s.renderTime(rec.Time), c1, c2, c3, rec.Mode, rec.NumSats, rec.SigmaUnitWeight,
		rec.ArRatio, rec.ArThreshold, rec.Vel[0], rec.Vel[1], rec.Vel[2])

	clocks := make([]Constellation, 0, len(rec.ClockBias))
	for c := range rec.ClockBias {
		clocks = append(clocks, c)
	}
	sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })
	for _, c := range clocks {
		fmt.Fprintf(s.w, " %s:%.9e", c, rec.ClockBias[c])
	}
	fmt.Fprint(s.w, "\n")
}
