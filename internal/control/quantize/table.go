// Package quantize maps continuous speed and turn-rate demands onto the fish's discrete codes.
//
// The calibration table is measured on the real fish and handed in by the host configuration;
// nothing here derives it.
package quantize

import (
	"fmt"
	"math"

	"aquapolo.ai/internal/sim/model"
)

// MinMovingSpeed is the lowest speed code the search will return. Code 0 is reserved for stop.
const MinMovingSpeed = 1

// Table is the calibration data: linear speed (mm/s) and angular rate (rad/s) per code.
// Turn codes below 7 have negative rates, above 7 positive rates.
type Table struct {
	Speed [model.CodeCount]float64
	Turn  [model.CodeCount]float64
}

// DefaultTable is the calibration shipped in configs/tuning.yaml. Code 1 outruns code 2 on the
// measured fish; the speed search tolerates it.
func DefaultTable() Table {
	return Table{
		Speed: [model.CodeCount]float64{0, 32, 22, 39, 60, 80, 100, 118, 136, 154, 172, 190, 210, 230, 250},
		Turn:  [model.CodeCount]float64{-0.42, -0.36, -0.30, -0.24, -0.18, -0.12, -0.06, 0, 0.06, 0.12, 0.18, 0.24, 0.30, 0.36, 0.42},
	}
}

func (t *Table) SpeedOf(code int) float64 { return t.Speed[model.ClampCode(code)] }
func (t *Table) RateOf(code int) float64  { return t.Turn[model.ClampCode(code)] }

func (t *Table) MaxSpeed() float64 {
	m := 0.0
	for _, v := range t.Speed {
		if v > m {
			m = v
		}
	}
	return m
}

// MaxRate is the largest turn-rate magnitude on either side.
func (t *Table) MaxRate() float64 {
	m := 0.0
	for _, v := range t.Turn {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Validate checks the shape the search routines rely on. Low speed codes may be
// non-monotonic; only the neutral entries, the top speed and the turn ordering are enforced.
func (t *Table) Validate() error {
	if t.Speed[0] != 0 {
		return fmt.Errorf("speed[0] must be 0, got %v", t.Speed[0])
	}
	for i, v := range t.Speed {
		if v < 0 {
			return fmt.Errorf("speed[%d] must be >= 0, got %v", i, v)
		}
	}
	if t.Speed[model.MaxCode] != t.MaxSpeed() || t.MaxSpeed() <= 0 {
		return fmt.Errorf("speed[%d] must be the largest positive entry", model.MaxCode)
	}
	if t.Turn[model.NeutralTurn] != 0 {
		return fmt.Errorf("turn[%d] must be 0, got %v", model.NeutralTurn, t.Turn[model.NeutralTurn])
	}
	for i := model.NeutralTurn + 1; i <= model.MaxCode; i++ {
		if t.Turn[i] < t.Turn[i-1] {
			return fmt.Errorf("turn[%d]=%v below turn[%d]=%v", i, t.Turn[i], i-1, t.Turn[i-1])
		}
	}
	for i := model.NeutralTurn - 1; i >= model.MinCode; i-- {
		if t.Turn[i] > t.Turn[i+1] {
			return fmt.Errorf("turn[%d]=%v above turn[%d]=%v", i, t.Turn[i], i+1, t.Turn[i+1])
		}
	}
	return nil
}
