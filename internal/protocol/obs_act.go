package protocol

import (
	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/sim/model"
)

// OBS (host -> client), one per cycle.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Cycle           int   `json:"cycle"`
	RemainingCycles int   `json:"remaining_cycles"`
	ElapsedMs       int64 `json:"elapsed_ms"`
	CycleMs         int   `json:"cycle_ms"`

	Fish  []FishObs      `json:"fish"`
	Balls []BallObs      `json:"balls"`
	Holes []HoleObs      `json:"holes"`
	Flags map[string]int `json:"flags,omitempty"`
}

type FishObs struct {
	ID      int        `json:"id"`
	Pos     [2]float64 `json:"pos"` // x, z in mm
	Heading float64    `json:"heading"`
	Vel     [2]float64 `json:"vel"`
	AngVel  float64    `json:"ang_vel"`
}

type BallObs struct {
	ID     int        `json:"id"`
	Pos    [2]float64 `json:"pos"`
	InHole bool       `json:"in_hole"`
}

type HoleObs struct {
	ID      int        `json:"id"`
	Pos     [2]float64 `json:"pos"`
	Heading float64    `json:"heading"`
}

// ACT (client -> host), exactly one per OBS.
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Cycle           int          `json:"cycle"`
	Commands        []CommandReq `json:"commands"`
}

type CommandReq struct {
	Fish  int `json:"fish"`
	Speed int `json:"speed"`
	Turn  int `json:"turn"`
}

// World converts the frame into a snapshot with normalized headings.
func (o ObsMsg) World() *model.World {
	w := &model.World{
		Cycle:           o.Cycle,
		RemainingCycles: o.RemainingCycles,
		ElapsedMs:       o.ElapsedMs,
		CycleMs:         o.CycleMs,
		Fish:            make([]model.Fish, len(o.Fish)),
		Balls:           make([]model.Ball, len(o.Balls)),
		Holes:           make([]model.Hole, len(o.Holes)),
		Flags:           make(map[string]int, len(o.Flags)),
	}
	for i, f := range o.Fish {
		w.Fish[i] = model.Fish{
			ID:     f.ID,
			Pose:   model.Pose{Pos: orb.Point(f.Pos), Heading: geom.Normalize(f.Heading)},
			Vel:    orb.Point(f.Vel),
			AngVel: f.AngVel,
		}
	}
	for i, b := range o.Balls {
		w.Balls[i] = model.Ball{ID: b.ID, Pos: orb.Point(b.Pos), InHole: b.InHole}
	}
	for i, h := range o.Holes {
		w.Holes[i] = model.Hole{ID: h.ID, Pos: orb.Point(h.Pos), Heading: geom.Normalize(h.Heading)}
	}
	for k, v := range o.Flags {
		w.Flags[k] = v
	}
	return w
}

// NewAct builds the reply for cycle. Command i goes to fish i of the observation.
func NewAct(cycle int, fish []model.Fish, cmds []model.Command) ActMsg {
	act := ActMsg{Type: TypeAct, ProtocolVersion: Version, Cycle: cycle, Commands: make([]CommandReq, len(cmds))}
	for i, c := range cmds {
		c = c.Clamped()
		id := i
		if i < len(fish) {
			id = fish[i].ID
		}
		act.Commands[i] = CommandReq{Fish: id, Speed: c.Speed, Turn: c.Turn}
	}
	return act
}
