package quantize

import "aquapolo.ai/internal/sim/model"

// SpeedCode scans forward from MinMovingSpeed and returns the last code before the first
// one faster than v, or MinMovingSpeed when that one is already faster. Codes past a
// faster entry are never reached, even if a later one would still fit under v.
func (t *Table) SpeedCode(v float64) int {
	code := MinMovingSpeed
	for i := MinMovingSpeed; i <= model.MaxCode; i++ {
		if t.Speed[i] > v {
			break
		}
		code = i
	}
	return code
}

// TurnCode searches outward from the neutral code toward the sign of omega and returns the
// first code whose rate magnitude reaches |omega|, saturating at 0 or 14.
func (t *Table) TurnCode(omega float64) int {
	switch {
	case omega > 0:
		for i := model.NeutralTurn + 1; i <= model.MaxCode; i++ {
			if t.Turn[i] >= omega {
				return i
			}
		}
		return model.MaxCode
	case omega < 0:
		for i := model.NeutralTurn - 1; i >= model.MinCode; i-- {
			if t.Turn[i] <= omega {
				return i
			}
		}
		return model.MinCode
	default:
		return model.NeutralTurn
	}
}

// HardTurn is the maximal turn code toward the sign of dir.
func HardTurn(dir float64) int {
	if dir < 0 {
		return model.MinCode
	}
	return model.MaxCode
}
