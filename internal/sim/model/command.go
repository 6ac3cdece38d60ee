package model

// Code bounds shared by speed and turn codes.
const (
	MinCode     = 0
	MaxCode     = 14
	NeutralTurn = 7
	CodeCount   = MaxCode + 1
)

// Command is one discrete decision for one fish in one cycle.
type Command struct {
	Speed int `json:"speed"`
	Turn  int `json:"turn"`
}

// Stop keeps the fish still: zero speed, straight rudder.
var Stop = Command{Speed: 0, Turn: NeutralTurn}

func (c Command) IsStop() bool { return c == Stop }

// Clamped returns c with both codes forced into [MinCode, MaxCode].
func (c Command) Clamped() Command {
	return Command{Speed: ClampCode(c.Speed), Turn: ClampCode(c.Turn)}
}

func ClampCode(v int) int {
	if v < MinCode {
		return MinCode
	}
	if v > MaxCode {
		return MaxCode
	}
	return v
}

// StopAll returns a fresh all-stop command slice for n fish.
func StopAll(n int) []Command {
	out := make([]Command, n)
	for i := range out {
		out[i] = Stop
	}
	return out
}

// Fit pads cmds with Stop or truncates it so there is exactly one command per fish.
func Fit(cmds []Command, n int) []Command {
	if len(cmds) == n {
		return cmds
	}
	out := StopAll(n)
	copy(out, cmds)
	return out
}
