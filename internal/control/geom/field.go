package geom

import "github.com/paulmach/orb"

// Field is the rectangular pool. A zero Field places no constraint on points.
type Field struct {
	Bound orb.Bound
}

func NewField(minX, minZ, maxX, maxZ float64) Field {
	return Field{Bound: orb.Bound{Min: orb.Point{minX, minZ}, Max: orb.Point{maxX, maxZ}}}
}

func (f Field) IsZero() bool {
	return f.Bound.Min == f.Bound.Max
}

func (f Field) Contains(p orb.Point) bool {
	if f.IsZero() {
		return true
	}
	return f.Bound.Contains(p)
}

// Clamp pulls p inside the field shrunk by margin on every side.
func (f Field) Clamp(p orb.Point, margin float64) orb.Point {
	if f.IsZero() {
		return p
	}
	inner := f.Bound.Pad(-margin)
	if inner.Min[0] > inner.Max[0] || inner.Min[1] > inner.Max[1] {
		return f.Bound.Center()
	}
	out := p
	out[0] = clamp(out[0], inner.Min[0], inner.Max[0])
	out[1] = clamp(out[1], inner.Min[1], inner.Max[1])
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
