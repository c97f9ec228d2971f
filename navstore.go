package gnsscore

// MsgType tags the broadcast message family a navigation record was decoded
// from, used to order find_latest's candidate scan per spec.md §4.2.
type MsgType uint8

const (
	MsgLNAV MsgType = iota // GPS/QZS legacy LNAV, BDS D1/D2, GAL INAV/FNAV share the Eph shape
	MsgD1D2
	MsgD1
	MsgD2
	MsgINAV
	MsgFNAV
	MsgIFNV
	MsgCNAV // CNAV-family Ceph
)

// Eph is a Keplerian broadcast ephemeris record (GPS/GAL/QZS/BDS), ported
// from the teacher's Eph struct in types.go, trimmed to the fields the
// Kepler evaluation in spec.md §4.3 actually uses.
type Eph struct {
	Sv      Sv
	MsgType MsgType
	Toe     Epoch // time of ephemeris (reference scale)
	Toc     Epoch // time of clock
	Toes    float64 // toe expressed as seconds-of-week, for Omega-dot propagation

	A0    float64 // semi-major axis
	E     float64 // eccentricity
	I0    float64 // inclination at toe
	Omg0  float64 // longitude of ascending node at toe
	Omega float64 // argument of perigee (lower omega)
	M0    float64 // mean anomaly at toe
	DeltaN float64 // mean motion correction

	Cus, Cuc float64 // latitude argument harmonic terms
	Crs, Crc float64 // radius harmonic terms
	Cis, Cic float64 // inclination harmonic terms

	OmegaDot float64 // rate of right ascension
	IDot     float64 // rate of inclination

	Af0, Af1, Af2 float64 // clock bias/drift/drift-rate
	Tgd           [2]float64

	Sva    int // URA index
	Svh    int // health
	Health bool
}

// Ceph is a CNAV-family ephemeris (GPS/QZS/BDS), extending Eph with rate
// terms on semi-major axis and mean motion, ported from the teacher's Ceph.
type Ceph struct {
	Eph
	ADot float64 // semi-major axis rate
	NDot float64 // mean motion rate
}

// GEph is a GLONASS FDMA state-vector record, ported from the teacher's
// Geph.
type GEph struct {
	Sv       Sv
	Toe      Epoch
	FrameNum int
	Slot     int // FDMA channel number, -7..+6

	Pos [3]float64 // PZ-90 position, meters
	Vel [3]float64 // PZ-90 velocity, m/s
	Acc [3]float64 // luni-solar acceleration, m/s^2

	Tau float64 // -clock bias, s
	Gamma float64 // relative clock frequency bias

	Health bool
}

// SEph is an SBAS state-vector record, ported from the teacher's Seph.
type SEph struct {
	Sv   Sv
	T0   Epoch
	Pos  [3]float64
	Vel  [3]float64
	Acc  [3]float64
	Af0  float64
	Af1  float64
	Health bool
}

// PephSample is one epoch of a precise position/clock product (SP3-derived),
// ported from the teacher's Peph.
type PephSample struct {
	Time Epoch
	Pos  [3]float64
	Clk  float64
	PosStd [3]float64
	ClkStd float64
}

// ephKey identifies one (sv, message-type, reference-time) slot in the
// keyed container required by spec.md §3 ("sv -> message-type -> time ->
// record").
type ephKey struct {
	sv  Sv
	typ MsgType
	toe Epoch
}

// Nav is the ephemeris store (C4): a keyed container of broadcast and
// precise records, grounded on the teacher's Nav struct in types.go (which
// held flat []Eph/[]Geph/[]Seph/[]Peph slices scanned linearly); reworked
// into the map-keyed lookup spec.md §4.2 specifies.
type Nav struct {
	eph  map[Sv]map[MsgType][]Eph
	ceph map[Sv]map[MsgType][]Ceph
	geph map[Sv][]GEph
	seph map[Sv][]SEph
	peph map[Sv][]PephSample

	tgd map[ephKey][2]float64
}

// NewNav constructs an empty ephemeris store.
func NewNav() *Nav {
	return &Nav{
		eph:  make(map[Sv]map[MsgType][]Eph),
		ceph: make(map[Sv]map[MsgType][]Ceph),
		geph: make(map[Sv][]GEph),
		seph: make(map[Sv][]SEph),
		peph: make(map[Sv][]PephSample),
		tgd:  make(map[ephKey][2]float64),
	}
}

// AddEph inserts a Keplerian ephemeris record.
func (n *Nav) AddEph(e Eph) {
	if n.eph[e.Sv] == nil {
		n.eph[e.Sv] = make(map[MsgType][]Eph)
	}
	n.eph[e.Sv][e.MsgType] = append(n.eph[e.Sv][e.MsgType], e)
	n.tgd[ephKey{e.Sv, e.MsgType, e.Toe}] = e.Tgd
}

// AddCeph inserts a CNAV-family ephemeris record.
func (n *Nav) AddCeph(c Ceph) {
	if n.ceph[c.Sv] == nil {
		n.ceph[c.Sv] = make(map[MsgType][]Ceph)
	}
	n.ceph[c.Sv][c.MsgType] = append(n.ceph[c.Sv][c.MsgType], c)
	n.tgd[ephKey{c.Sv, c.MsgType, c.Toe}] = c.Tgd
}

// AddGEph inserts a GLONASS state-vector record.
func (n *Nav) AddGEph(g GEph) { n.geph[g.Sv] = append(n.geph[g.Sv], g) }

// AddSEph inserts an SBAS state-vector record.
func (n *Nav) AddSEph(s SEph) { n.seph[s.Sv] = append(n.seph[s.Sv], s) }

// AddPeph inserts a precise orbit/clock sample.
func (n *Nav) AddPeph(sv Sv, p PephSample) { n.peph[sv] = append(n.peph[sv], p) }

// MaxToe returns the validity half-window for a satellite's constellation,
// per spec.md §3: GPS/GLO 7200s, GAL 9600s, BDS/QZS 3600s, SBAS 360s.
func MaxToe(sv Sv) float64 {
	switch sv.Constellation {
	case ConstGPS, ConstGLO:
		return 7200
	case ConstGAL:
		return 9600
	case ConstBDS, ConstQZS:
		return 3600
	case ConstSBS:
		return 360
	default:
		return 7200
	}
}

// bdsMsgPriority / galMsgPriority are the find-latest scan orders per
// spec.md §4.2.
var bdsMsgPriority = []MsgType{MsgD1D2, MsgD1, MsgD2}
var galMsgPriority = []MsgType{MsgINAV, MsgFNAV, MsgIFNV}

// msgPriority returns the candidate message-type scan order for a
// satellite's constellation.
func msgPriority(sv Sv) []MsgType {
	switch sv.Constellation {
	case ConstBDS:
		return bdsMsgPriority
	case ConstGAL:
		return galMsgPriority
	default:
		return []MsgType{MsgLNAV}
	}
}

// FindLatestEph scans candidate message types in priority order and
// returns the newest Eph whose |t-toe| <= max_toe(sv), per spec.md §4.2.
func (n *Nav) FindLatestEph(sv Sv, t Epoch) (Eph, bool) {
	bySv, ok := n.eph[sv]
	if !ok {
		return Eph{}, false
	}
	window := MaxToe(sv)
	var best Eph
	found := false
	for _, typ := range msgPriority(sv) {
		for _, e := range bySv[typ] {
			if abs64(t.Sub(e.Toe)) > window {
				continue
			}
			if !found || e.Toe.Sub(best.Toe) > 0 {
				best = e
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return Eph{}, false
}

// FindLatestCeph is FindLatestEph's counterpart for CNAV-family records.
func (n *Nav) FindLatestCeph(sv Sv, t Epoch) (Ceph, bool) {
	bySv, ok := n.ceph[sv]
	if !ok {
		return Ceph{}, false
	}
	window := MaxToe(sv)
	var best Ceph
	found := false
	for _, typ := range msgPriority(sv) {
		for _, c := range bySv[typ] {
			if abs64(t.Sub(c.Toe)) > window {
				continue
			}
			if !found || c.Toe.Sub(best.Toe) > 0 {
				best = c
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return Ceph{}, false
}

// FindLatestGEph returns the newest GLONASS record within the validity
// window of t.
func (n *Nav) FindLatestGEph(sv Sv, t Epoch) (GEph, bool) {
	window := MaxToe(sv)
	var best GEph
	found := false
	for _, g := range n.geph[sv] {
		if abs64(t.Sub(g.Toe)) > window {
			continue
		}
		if !found || g.Toe.Sub(best.Toe) > 0 {
			best = g
			found = true
		}
	}
	return best, found
}

// FindLatestSEph returns the newest SBAS record within the validity window
// of t.
func (n *Nav) FindLatestSEph(sv Sv, t Epoch) (SEph, bool) {
	window := MaxToe(sv)
	var best SEph
	found := false
	for _, s := range n.seph[sv] {
		if abs64(t.Sub(s.T0)) > window {
			continue
		}
		if !found || s.T0.Sub(best.T0) > 0 {
			best = s
			found = true
		}
	}
	return best, found
}

// GroupDelay returns the TGD/BGD parameters cached for a given (sv,
// msgtype, toe) triple, per spec.md §4.2's "group-delay parameters ...
// which the solver caches per epoch".
func (n *Nav) GroupDelay(sv Sv, typ MsgType, toe Epoch) ([2]float64, bool) {
	v, ok := n.tgd[ephKey{sv, typ, toe}]
	return v, ok
}

func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
