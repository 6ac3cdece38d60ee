// Package geom holds the planar geometry shared by the controllers.
//
// Positions live in the pool plane as orb.Point{x, z} in millimetres. Headings are radians
// measured from +x toward +z and are kept in (-π, π].
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// axisEps is the |x| below which a vector is treated as lying on the z axis.
const axisEps = 1e-9

// Normalize wraps an angle into (-π, π].
func Normalize(a float64) float64 {
	r := math.Mod(a+math.Pi, 2*math.Pi)
	if r <= 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}

// AngularDelta returns a - b wrapped into (-π, π].
func AngularDelta(a, b float64) float64 {
	return Normalize(a - b)
}

func Degrees(rad float64) float64 { return rad * 180 / math.Pi }
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// BearingDeg is the signed ground-plane angle of v in degrees, in [-180, 180].
func BearingDeg(v orb.Point) float64 {
	x, z := v[0], v[1]
	if math.Abs(x) < axisEps {
		switch {
		case z > 0:
			return 90
		case z < 0:
			return -90
		default:
			return 0
		}
	}
	deg := Degrees(math.Atan(z / x))
	if x < 0 {
		if z >= 0 {
			deg += 180
		} else {
			deg -= 180
		}
	}
	return deg
}

// Bearing is BearingDeg in radians, normalized.
func Bearing(v orb.Point) float64 {
	return Normalize(Radians(BearingDeg(v)))
}

// PlanarDistance ignores the vertical axis; positions carry only x and z.
func PlanarDistance(p, q orb.Point) float64 {
	return planar.Distance(p, q)
}

func Sub(p, q orb.Point) orb.Point {
	return orb.Point{p[0] - q[0], p[1] - q[1]}
}

// Offset moves p by d along heading.
func Offset(p orb.Point, heading, d float64) orb.Point {
	return orb.Point{p[0] + d*math.Cos(heading), p[1] + d*math.Sin(heading)}
}

// ToLocalFrame expresses point in a frame centred on origin whose x axis points along heading
// and whose z axis points 90° toward positive rotation.
func ToLocalFrame(heading float64, origin, point orb.Point) (x, z float64) {
	dx := point[0] - origin[0]
	dz := point[1] - origin[1]
	c, s := math.Cos(heading), math.Sin(heading)
	return dx*c + dz*s, -dx*s + dz*c
}
