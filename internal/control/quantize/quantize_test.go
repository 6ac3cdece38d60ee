package quantize

import (
	"testing"

	"aquapolo.ai/internal/sim/model"
)

func testTable() Table {
	return Table{
		// code 1 is faster than code 2: the measured quirk of the low gait codes.
		Speed: [model.CodeCount]float64{0, 32, 22, 39, 60, 80, 100, 118, 136, 154, 172, 190, 210, 230, 250},
		Turn:  [model.CodeCount]float64{-0.42, -0.36, -0.30, -0.24, -0.18, -0.12, -0.06, 0, 0.06, 0.12, 0.18, 0.24, 0.30, 0.36, 0.42},
	}
}

func TestSpeedCode_Endpoints(t *testing.T) {
	tb := testTable()
	if got := tb.SpeedCode(0); got != MinMovingSpeed {
		t.Fatalf("SpeedCode(0)=%d want %d", got, MinMovingSpeed)
	}
	if got := tb.SpeedCode(250); got != model.MaxCode {
		t.Fatalf("SpeedCode(max)=%d", got)
	}
	if got := tb.SpeedCode(10000); got != model.MaxCode {
		t.Fatalf("SpeedCode(huge)=%d", got)
	}
}

func TestSpeedCode_StopsAtFirstFasterCode(t *testing.T) {
	tb := testTable()
	if got := tb.SpeedCode(140); got != 8 {
		t.Fatalf("SpeedCode(140)=%d want 8", got)
	}
	if got := tb.SpeedCode(136); got != 8 {
		t.Fatalf("SpeedCode(136)=%d want 8", got)
	}
	// 25 mm/s sits between code 2 (22) and code 1 (32); the forward scan stops at code 1.
	if got := tb.SpeedCode(25); got != 1 {
		t.Fatalf("SpeedCode(25)=%d want 1", got)
	}
	if got := tb.SpeedCode(35); got != 2 {
		t.Fatalf("SpeedCode(35)=%d want 2", got)
	}
}

func TestTurnCode(t *testing.T) {
	tb := testTable()
	cases := []struct {
		omega float64
		want  int
	}{
		{0, 7},
		{0.01, 8},
		{0.06, 8},
		{0.061, 9},
		{0.5, 14},
		{-0.01, 6},
		{-0.25, 2},
		{-5, 0},
	}
	for _, c := range cases {
		if got := tb.TurnCode(c.omega); got != c.want {
			t.Fatalf("TurnCode(%v)=%d want %d", c.omega, got, c.want)
		}
	}
}

func TestTable_LookupsAndValidate(t *testing.T) {
	tb := testTable()
	if err := tb.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tb.MaxSpeed() != 250 || tb.MaxRate() != 0.42 {
		t.Fatalf("max speed/rate = %v/%v", tb.MaxSpeed(), tb.MaxRate())
	}
	if tb.SpeedOf(99) != 250 || tb.RateOf(-3) != -0.42 {
		t.Fatalf("lookups should clamp codes")
	}

	bad := testTable()
	bad.Turn[9] = 0.01
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected non-monotonic turn table to fail")
	}
	bad = testTable()
	bad.Speed[14] = 100
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected top speed check to fail")
	}
}
