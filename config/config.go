// Package config loads and validates the TOML run configuration, per
// spec.md §6, using BurntSushi/toml the way the teacher's options.go loads
// its own INI-style format.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	gnsscore "github.com/fxb-gnss/gnsscore"
)

// Meta holds informational run metadata, per spec.md §6's [meta] section.
type Meta struct {
	Task     string `toml:"task"`
	Project  string `toml:"project"`
	Time     string `toml:"time"`
	Executor string `toml:"executor"`
}

// RefPosStyle tags how a reference position is expressed in [io].
type RefPosStyle int

const (
	RefPosXYZ RefPosStyle = iota
	RefPosBLH
	RefPosENU
)

// IO holds input/output paths and reference positions, per spec.md §6's
// [io] section.
type IO struct {
	RoverNavPath string `toml:"rover_nav_path"`
	BaseNavPath  string `toml:"base_nav_path"`
	RoverObsPath string `toml:"rover_obs_path"`
	BaseObsPath  string `toml:"base_obs_path"`
	OutPath      string `toml:"out_path"`
	RefPath      string `toml:"ref_path"`

	RoverRefPosStyle int        `toml:"rover_ref_pos_style"`
	BaseRefPosStyle  int        `toml:"base_ref_pos_style"`
	RoverRefPos      [3]float64 `toml:"rover_ref_pos"`
	BaseRefPos       [3]float64 `toml:"base_ref_pos"`
}

// TropModel enumerates the [model].trop values, per spec.md §6.
type TropModel int

const (
	TropStandard TropModel = iota
	TropSBAS
	TropVMF3
	TropGPT2
	TropCSSR
)

// IonoModelKind enumerates the [model].iono values.
type IonoModelKind int

const (
	IonoNone IonoModelKind = iota
	IonoMeasOut
	IonoBSpline
	IonoSphericalCaps
	IonoSphericalHarmonics
	IonoLocal
)

// SolutionModeKind enumerates the [model].solution_mode values.
type SolutionModeKind int

const (
	SolSPP SolutionModeKind = iota
	SolRTK
	SolPPP
	SolLC
	SolTC
	SolFGO
)

// Model holds the positioning model selection, per spec.md §6's [model]
// section.
type Model struct {
	EnabledCode  map[string][]string `toml:"enabled_code"`
	Trop         int                 `toml:"trop"`
	Iono         int                 `toml:"iono"`
	SolutionMode int                 `toml:"solution_mode"`
}

// Config is the fully parsed run configuration.
type Config struct {
	Meta   Meta     `toml:"meta"`
	IO     IO       `toml:"io"`
	Model  Model    `toml:"model"`
	Filter []string `toml:"filter"`

	// RunID is stamped at load time (not part of the TOML document) to
	// correlate this run's log lines and output records.
	RunID string
}

// Load reads and parses a TOML configuration file, per spec.md §6/§7:
// returns ConfigMissing if the file cannot be opened, ConfigInvalid if the
// TOML is malformed or fails schema validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Kind: gnsscore.ErrConfigMissing, Path: path, Cause: err}
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, &ConfigError{Kind: gnsscore.ErrConfigInvalid, Path: path, Cause: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Kind: gnsscore.ErrConfigInvalid, Path: path, Cause: err}
	}

	cfg.RunID = uuid.NewString()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.IO.RoverObsPath == "" {
		return fmt.Errorf("io.rover_obs_path is required")
	}
	if c.IO.RoverNavPath == "" {
		return fmt.Errorf("io.rover_nav_path is required")
	}
	if c.Model.SolutionMode < int(SolSPP) || c.Model.SolutionMode > int(SolFGO) {
		return fmt.Errorf("model.solution_mode out of range: %d", c.Model.SolutionMode)
	}
	return nil
}

// ConfigError wraps a configuration load failure with the offending path.
type ConfigError struct {
	Kind  gnsscore.ErrorKind
	Path  string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// FilterOp is a comparison operator in a mask string.
type FilterOp int

const (
	OpGT FilterOp = iota
	OpLT
	OpGE
	OpLE
	OpEQ
	OpNE
)

// FilterKind tags which field a mask clause constrains.
type FilterKind int

const (
	FilterEpoch FilterKind = iota
	FilterConstellation
	FilterSatellite
	FilterCarrier
	FilterSNR
	FilterElevation
	FilterAzimuth
)

// FilterClause is one parsed mask entry, per spec.md §6's [filter] grammar:
// "<op><item>" with item an epoch literal, constellation/satellite id,
// carrier name, or a float+unit for SNR/elevation/azimuth.
type FilterClause struct {
	Op    FilterOp
	Kind  FilterKind
	Epoch gnsscore.Epoch
	Sv    gnsscore.Sv
	Cons  gnsscore.Constellation
	Band  string
	Value float64
}

// ParseFilters parses the [filter] list of mask strings into clauses,
// returning ParseFilterError on malformed input, per spec.md §7.
func ParseFilters(masks []string) ([]FilterClause, error) {
	out := make([]FilterClause, 0, len(masks))
	for _, raw := range masks {
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			clause, err := parseOneFilter(item)
			if err != nil {
				return nil, err
			}
			out = append(out, clause)
		}
	}
	return out, nil
}

func parseOneFilter(s string) (FilterClause, error) {
	op, rest, err := splitOp(s)
	if err != nil {
		return FilterClause{}, err
	}

	if e, perr := gnsscore.ParseEpoch(rest); perr == nil {
		return FilterClause{Op: op, Kind: FilterEpoch, Epoch: e}, nil
	}

	if len(rest) > 0 && (rest[len(rest)-1] == 's' || rest[len(rest)-1] == 'e' || rest[len(rest)-1] == 'a') {
		suffix := rest[len(rest)-1]
		numPart := rest[:len(rest)-1]
		if v, verr := strconv.ParseFloat(numPart, 64); verr == nil {
			kind := FilterSNR
			switch suffix {
			case 'e':
				kind = FilterElevation
			case 'a':
				kind = FilterAzimuth
			}
			return FilterClause{Op: op, Kind: kind, Value: v}, nil
		}
	}

	isBdsSat := len(rest) == 3 && rest[0] == 'C' && rest[1] >= '0' && rest[1] <= '9' && rest[2] >= '0' && rest[2] <= '9'
	if strings.HasPrefix(rest, "L") || strings.HasPrefix(rest, "C") && len(rest) > 1 && len(rest) <= 3 && !isBdsSat {
		return FilterClause{Op: op, Kind: FilterCarrier, Band: rest}, nil
	}

	if len(rest) == 1 {
		cons, cerr := parseConstellationLetter(rest)
		if cerr == nil {
			return FilterClause{Op: op, Kind: FilterConstellation, Cons: cons}, nil
		}
	}

	if sv, serr := gnsscore.ParseSv(rest); serr == nil {
		return FilterClause{Op: op, Kind: FilterSatellite, Sv: sv}, nil
	}

	return FilterClause{}, &gnsscore.ParseError{Kind: gnsscore.ErrParseFilter, Input: s}
}

func splitOp(s string) (FilterOp, string, error) {
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGE, s[2:], nil
	case strings.HasPrefix(s, "<="):
		return OpLE, s[2:], nil
	case strings.HasPrefix(s, "!="):
		return OpNE, s[2:], nil
	case strings.HasPrefix(s, ">"):
		return OpGT, s[1:], nil
	case strings.HasPrefix(s, "<"):
		return OpLT, s[1:], nil
	case strings.HasPrefix(s, "="):
		return OpEQ, s[1:], nil
	default:
		return 0, "", &gnsscore.ParseError{Kind: gnsscore.ErrParseFilter, Input: s}
	}
}

func parseConstellationLetter(s string) (gnsscore.Constellation, error) {
	switch s {
	case "G":
		return gnsscore.ConstGPS, nil
	case "R":
		return gnsscore.ConstGLO, nil
	case "E":
		return gnsscore.ConstGAL, nil
	case "C":
		return gnsscore.ConstBDS, nil
	case "J":
		return gnsscore.ConstQZS, nil
	case "S":
		return gnsscore.ConstSBS, nil
	case "I":
		return gnsscore.ConstIRN, nil
	default:
		return gnsscore.ConstNone, &gnsscore.ParseError{Kind: gnsscore.ErrParseConstellation, Input: s}
	}
}
