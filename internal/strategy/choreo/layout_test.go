package choreo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/sim/tuning"
)

func near(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < 1e-6 && math.Abs(a[1]-b[1]) < 1e-6
}

func TestLayout_LineIsCenteredAcrossHeading(t *testing.T) {
	s := tuning.FormationSpec{Shape: "line", Center: [2]float64{1000, 1000}, HeadingDeg: 0, SpacingMm: 200}
	got := Layout(s, 3, geom.Field{}, 0)
	want := []orb.Point{{1000, 800}, {1000, 1000}, {1000, 1200}}
	for i := range want {
		if !near(got[i].Pos, want[i]) || got[i].Heading != 0 {
			t.Fatalf("slot %d=%+v want %v", i, got[i], want[i])
		}
	}
}

func TestLayout_ColumnFollowsHeading(t *testing.T) {
	s := tuning.FormationSpec{Shape: "column", Center: [2]float64{1000, 1000}, HeadingDeg: 90, SpacingMm: 300}
	got := Layout(s, 3, geom.Field{}, 0)
	want := []orb.Point{{1000, 1300}, {1000, 1000}, {1000, 700}}
	for i := range want {
		if !near(got[i].Pos, want[i]) {
			t.Fatalf("slot %d=%v want %v", i, got[i].Pos, want[i])
		}
		if math.Abs(got[i].Heading-math.Pi/2) > 1e-9 {
			t.Fatalf("slot %d heading=%v", i, got[i].Heading)
		}
	}
}

func TestLayout_WedgeTrailsTheTip(t *testing.T) {
	s := tuning.FormationSpec{Shape: "wedge", Center: [2]float64{0, 0}, SpacingMm: 100}
	got := Layout(s, 5, geom.Field{}, 0)
	want := []orb.Point{{0, 0}, {-100, -100}, {-100, 100}, {-200, -200}, {-200, 200}}
	for i := range want {
		if !near(got[i].Pos, want[i]) {
			t.Fatalf("slot %d=%v want %v", i, got[i].Pos, want[i])
		}
	}
}

func TestLayout_CircleEquidistant(t *testing.T) {
	s := tuning.FormationSpec{Shape: "circle", Center: [2]float64{1500, 1000}, RadiusMm: 600}
	got := Layout(s, 4, geom.Field{}, 0)
	for i, tg := range got {
		if d := geom.PlanarDistance(tg.Pos, orb.Point{1500, 1000}); math.Abs(d-600) > 1e-6 {
			t.Fatalf("slot %d radius=%v", i, d)
		}
		out := geom.Bearing(geom.Sub(tg.Pos, orb.Point{1500, 1000}))
		if math.Abs(geom.AngularDelta(tg.Heading, out)-math.Pi/2) > 1e-9 {
			t.Fatalf("slot %d heading not tangent", i)
		}
	}
	if !near(got[1].Pos, orb.Point{1500, 1600}) {
		t.Fatalf("slot 1=%v", got[1].Pos)
	}
}

func TestLayout_PointsAndClamp(t *testing.T) {
	s := tuning.FormationSpec{Shape: "points", Points: []tuning.PointSpec{
		{X: 100, Z: 100, HeadingDeg: 180},
		{X: 2000, Z: 5000, HeadingDeg: -90},
	}}
	field := geom.NewField(0, 0, 3000, 2000)
	got := Layout(s, 7, field, 150)
	if len(got) != 2 {
		t.Fatalf("points layout ignores fish count, got %d", len(got))
	}
	if !near(got[0].Pos, orb.Point{150, 150}) || !near(got[1].Pos, orb.Point{2000, 1850}) {
		t.Fatalf("clamped=%v %v", got[0].Pos, got[1].Pos)
	}
	if math.Abs(got[0].Heading-math.Pi) > 1e-9 || math.Abs(got[1].Heading+math.Pi/2) > 1e-9 {
		t.Fatalf("headings=%v %v", got[0].Heading, got[1].Heading)
	}
}
