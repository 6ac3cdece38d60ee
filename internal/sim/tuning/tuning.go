// Package tuning loads the per-team tuning file: calibration, controller gains, thresholds,
// timeouts and formation layouts.
package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"aquapolo.ai/internal/control/dribble"
	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/control/pose"
	"aquapolo.ai/internal/control/quantize"
	"aquapolo.ai/internal/sim/model"
)

const ProtocolVersion = "aquapolo/1"

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`
	TeamName        string `yaml:"team_name"`
	Strategy        string `yaml:"strategy"`

	// CycleMs is the fallback when the host does not report one.
	CycleMs int `yaml:"cycle_ms"`

	Calibration Calibration     `yaml:"calibration"`
	Field       FieldSpec       `yaml:"field"`
	Pose        pose.Config     `yaml:"pose"`
	Dribble     dribble.Config  `yaml:"dribble"`
	Formation   FormationTuning `yaml:"formation"`
	Polo        PoloTuning      `yaml:"polo"`
}

type Calibration struct {
	Speed []float64 `yaml:"speed_mm_s"`
	Turn  []float64 `yaml:"turn_rad_s"`
}

type FieldSpec struct {
	MinX     float64 `yaml:"min_x"`
	MinZ     float64 `yaml:"min_z"`
	MaxX     float64 `yaml:"max_x"`
	MaxZ     float64 `yaml:"max_z"`
	MarginMm float64 `yaml:"margin_mm"`
}

type FormationTuning struct {
	AngleThresholdDeg float64         `yaml:"angle_threshold_deg"`
	DistThresholdMm   float64         `yaml:"dist_threshold_mm"`
	ConvergeTimeoutS  float64         `yaml:"converge_timeout_s"`
	HoldS             float64         `yaml:"hold_s"`
	StableCycles      int             `yaml:"stable_cycles"`
	Formations        []FormationSpec `yaml:"formations"`
}

// FormationSpec describes one layout. Zero timeouts inherit the FormationTuning values.
type FormationSpec struct {
	Name             string      `yaml:"name"`
	Shape            string      `yaml:"shape"`
	Center           [2]float64  `yaml:"center"`
	HeadingDeg       float64     `yaml:"heading_deg"`
	SpacingMm        float64     `yaml:"spacing_mm,omitempty"`
	RadiusMm         float64     `yaml:"radius_mm,omitempty"`
	Points           []PointSpec `yaml:"points,omitempty"`
	ConvergeTimeoutS float64     `yaml:"converge_timeout_s,omitempty"`
	HoldS            float64     `yaml:"hold_s,omitempty"`
}

type PointSpec struct {
	X          float64 `yaml:"x"`
	Z          float64 `yaml:"z"`
	HeadingDeg float64 `yaml:"heading_deg"`
}

type PoloTuning struct {
	Kickoff FormationSpec `yaml:"kickoff"`

	ApproachOffsetMm float64 `yaml:"approach_offset_mm"`
	ApproachAngleDeg float64 `yaml:"approach_angle_deg"`
	ApproachDistMm   float64 `yaml:"approach_dist_mm"`
	ApproachTimeoutS float64 `yaml:"approach_timeout_s"`
	PushTimeoutS     float64 `yaml:"push_timeout_s"`
	ParkTimeoutS     float64 `yaml:"park_timeout_s"`
	MaxRetries       int     `yaml:"max_retries"`
	RegripDistanceMm float64 `yaml:"regrip_distance_mm"`
	Theta1Deg        float64 `yaml:"theta1_deg"`
	Theta2Deg        float64 `yaml:"theta2_deg"`
	PushNearDistMm   float64 `yaml:"push_near_dist_mm"`
	PushFarSpeed     int     `yaml:"push_far_speed"`
	PushNearSpeed    int     `yaml:"push_near_speed"`
	StabilizeCycles  int     `yaml:"stabilize_cycles"`
	UseHead          bool    `yaml:"use_head"`
}

var Shapes = []string{"points", "line", "column", "wedge", "circle"}

func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	tb := quantize.DefaultTable()
	return Tuning{
		ProtocolVersion: ProtocolVersion,
		TeamName:        "aquapolo",
		Strategy:        "choreo",
		CycleMs:         100,
		Calibration: Calibration{
			Speed: append([]float64(nil), tb.Speed[:]...),
			Turn:  append([]float64(nil), tb.Turn[:]...),
		},
		Field:   FieldSpec{MinX: 0, MinZ: 0, MaxX: 3000, MaxZ: 2000, MarginMm: 150},
		Pose:    pose.DefaultConfig(),
		Dribble: dribble.DefaultConfig(),
		Formation: FormationTuning{
			AngleThresholdDeg: 30,
			DistThresholdMm:   100,
			ConvergeTimeoutS:  30,
			HoldS:             3,
			StableCycles:      3,
		},
		Polo: PoloTuning{
			Kickoff: FormationSpec{
				Name:      "kickoff",
				Shape:     "column",
				Center:    [2]float64{400, 1000},
				SpacingMm: 400,
			},
			ApproachOffsetMm: 300,
			ApproachAngleDeg: 30,
			ApproachDistMm:   100,
			ApproachTimeoutS: 20,
			PushTimeoutS:     40,
			ParkTimeoutS:     20,
			MaxRetries:       2,
			RegripDistanceMm: 450,
			Theta1Deg:        10,
			Theta2Deg:        45,
			PushNearDistMm:   300,
			PushFarSpeed:     12,
			PushNearSpeed:    6,
			StabilizeCycles:  3,
			UseHead:          true,
		},
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.TeamName = strings.TrimSpace(t.TeamName)
	t.Strategy = strings.ToLower(strings.TrimSpace(t.Strategy))
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = ProtocolVersion
	}
	if t.CycleMs <= 0 {
		t.CycleMs = 100
	}
	if t.Formation.StableCycles < 1 {
		t.Formation.StableCycles = 1
	}
	for i := range t.Formation.Formations {
		normalizeSpec(&t.Formation.Formations[i], t.Formation, fmt.Sprintf("formation%d", i))
	}
	normalizeSpec(&t.Polo.Kickoff, t.Formation, "kickoff")
	if t.Polo.MaxRetries < 0 {
		t.Polo.MaxRetries = 0
	}
}

func normalizeSpec(s *FormationSpec, def FormationTuning, name string) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = name
	}
	s.Shape = strings.ToLower(strings.TrimSpace(s.Shape))
	if s.Shape == "" && len(s.Points) > 0 {
		s.Shape = "points"
	}
	if s.ConvergeTimeoutS <= 0 {
		s.ConvergeTimeoutS = def.ConvergeTimeoutS
	}
	if s.HoldS <= 0 {
		s.HoldS = def.HoldS
	}
}

func (t Tuning) Validate() error {
	t.Normalize()
	if t.ProtocolVersion != ProtocolVersion {
		return fmt.Errorf("protocol_version %q not supported (want %s)", t.ProtocolVersion, ProtocolVersion)
	}
	if t.TeamName == "" {
		return fmt.Errorf("team_name must not be empty")
	}
	if len(t.Calibration.Speed) != model.CodeCount || len(t.Calibration.Turn) != model.CodeCount {
		return fmt.Errorf("calibration needs %d speed and %d turn entries, got %d and %d",
			model.CodeCount, model.CodeCount, len(t.Calibration.Speed), len(t.Calibration.Turn))
	}
	tb := t.Table()
	if err := tb.Validate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	if t.Field.MaxX <= t.Field.MinX || t.Field.MaxZ <= t.Field.MinZ {
		return fmt.Errorf("field bounds are empty")
	}
	if t.Field.MarginMm < 0 {
		return fmt.Errorf("field margin_mm must be >= 0")
	}
	if t.Pose.WaypointWindow <= 0 || t.Pose.StopDistanceMm <= 0 || t.Pose.StopAngleDeg <= 0 {
		return fmt.Errorf("pose waypoint_window, stop_distance_mm and stop_angle_deg must be > 0")
	}
	if t.Formation.DistThresholdMm <= 0 || t.Formation.AngleThresholdDeg <= 0 {
		return fmt.Errorf("formation thresholds must be > 0")
	}
	if t.Formation.ConvergeTimeoutS <= 0 {
		return fmt.Errorf("formation converge_timeout_s must be > 0")
	}
	seen := map[string]bool{}
	for _, s := range t.Formation.Formations {
		if seen[s.Name] {
			return fmt.Errorf("duplicate formation name: %s", s.Name)
		}
		seen[s.Name] = true
		if err := s.validate(); err != nil {
			return err
		}
	}
	if err := t.Polo.Kickoff.validate(); err != nil {
		return fmt.Errorf("polo: %w", err)
	}
	p := t.Polo
	if p.Theta1Deg <= 0 || p.Theta2Deg <= p.Theta1Deg {
		return fmt.Errorf("polo theta1_deg must be > 0 and below theta2_deg")
	}
	if p.ApproachOffsetMm <= 0 || p.RegripDistanceMm <= 0 {
		return fmt.Errorf("polo approach_offset_mm and regrip_distance_mm must be > 0")
	}
	if p.PushFarSpeed < model.MinCode || p.PushFarSpeed > model.MaxCode || p.PushNearSpeed < model.MinCode || p.PushNearSpeed > model.MaxCode {
		return fmt.Errorf("polo push speeds must be codes in [%d,%d]", model.MinCode, model.MaxCode)
	}
	return nil
}

func (s FormationSpec) validate() error {
	known := false
	for _, sh := range Shapes {
		known = known || sh == s.Shape
	}
	if !known {
		return fmt.Errorf("formation %s: unknown shape %q", s.Name, s.Shape)
	}
	switch s.Shape {
	case "points":
		if len(s.Points) == 0 {
			return fmt.Errorf("formation %s: points must not be empty", s.Name)
		}
	case "circle":
		if s.RadiusMm <= 0 {
			return fmt.Errorf("formation %s: radius_mm must be > 0", s.Name)
		}
	default:
		if s.SpacingMm <= 0 {
			return fmt.Errorf("formation %s: spacing_mm must be > 0", s.Name)
		}
	}
	return nil
}

// Table returns the calibration as a lookup table. Missing entries stay zero.
func (t Tuning) Table() quantize.Table {
	var tb quantize.Table
	copy(tb.Speed[:], t.Calibration.Speed)
	copy(tb.Turn[:], t.Calibration.Turn)
	return tb
}

func (t Tuning) FieldBounds() geom.Field {
	return geom.NewField(t.Field.MinX, t.Field.MinZ, t.Field.MaxX, t.Field.MaxZ)
}
