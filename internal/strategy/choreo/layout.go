package choreo

import (
	"math"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
)

// Layout expands a formation spec into n target poses. A points layout returns its listed
// points, whatever n is. Every target is clamped margin mm inside the field.
func Layout(s tuning.FormationSpec, n int, field geom.Field, margin float64) []model.Target {
	center := orb.Point{s.Center[0], s.Center[1]}
	heading := geom.Normalize(geom.Radians(s.HeadingDeg))

	var out []model.Target
	switch s.Shape {
	case "points":
		out = make([]model.Target, len(s.Points))
		for i, p := range s.Points {
			out[i] = model.Target{Pos: orb.Point{p.X, p.Z}, Heading: geom.Normalize(geom.Radians(p.HeadingDeg))}
		}
	case "circle":
		out = make([]model.Target, n)
		for i := range out {
			a := heading + 2*math.Pi*float64(i)/float64(n)
			out[i] = model.Target{
				Pos:     geom.Offset(center, a, s.RadiusMm),
				Heading: geom.Normalize(a + math.Pi/2),
			}
		}
	default:
		offs := offsets(s.Shape, n, s.SpacingMm)
		out = make([]model.Target, n)
		for i, o := range offs {
			out[i] = model.Target{Pos: slot(center, heading, o[0], o[1]), Heading: heading}
		}
	}
	for i := range out {
		out[i].Pos = field.Clamp(out[i].Pos, margin)
	}
	return out
}

// offsets returns (forward, lateral) slot offsets relative to the formation center.
// Lateral points 90° counter-clockwise from forward.
func offsets(shape string, n int, spacing float64) [][2]float64 {
	out := make([][2]float64, n)
	mid := float64(n-1) / 2
	switch shape {
	case "line":
		for i := range out {
			out[i] = [2]float64{0, (float64(i) - mid) * spacing}
		}
	case "column":
		for i := range out {
			out[i] = [2]float64{(mid - float64(i)) * spacing, 0}
		}
	case "wedge":
		// slot 0 at the tip, the rest trailing in alternating sides
		for i := 1; i < n; i++ {
			rank := float64((i + 1) / 2)
			side := rank * spacing
			if i%2 == 1 {
				side = -side
			}
			out[i] = [2]float64{-rank * spacing, side}
		}
	}
	return out
}

func slot(center orb.Point, heading, fwd, lat float64) orb.Point {
	c, s := math.Cos(heading), math.Sin(heading)
	return orb.Point{
		center[0] + c*fwd - s*lat,
		center[1] + s*fwd + c*lat,
	}
}
