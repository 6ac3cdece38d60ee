// Package ws is the fish client side of the host session: HELLO, then one ACT per OBS until
// the host sends END or the context is cancelled.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aquapolo.ai/internal/protocol"
	"aquapolo.ai/internal/sim/model"
)

// Decider produces one command per fish for a world snapshot.
type Decider interface {
	Decide(w *model.World) []model.Command
}

// Hooks are optional callbacks invoked on the session goroutine.
type Hooks struct {
	OnWelcome func(protocol.WelcomeMsg)
	// OnCycle sees every answered frame. w is nil when the frame failed validation.
	OnCycle func(cycle int, w *model.World, cmds []model.Command)
	OnEnd   func(reason string)
}

type Client struct {
	URL       string
	TeamName  string
	Strategy  string
	RunID     string
	Decider   Decider
	Validator *protocol.Validator // nil disables OBS and ACT validation
	Logger    *log.Logger
	Hooks     Hooks

	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
}

type Result struct {
	Welcome     protocol.WelcomeMsg
	Cycles      int
	Invalid     int
	// InvalidActs counts ACTs that failed the schema. They are sent regardless.
	InvalidActs int
	EndReason   string
}

func (c *Client) Run(ctx context.Context) (Result, error) {
	var res Result
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return res, fmt.Errorf("dial %s: %w", c.URL, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer wg.Wait()
	defer close(done)

	if err := writeJSON(conn, protocol.NewHello(c.TeamName, c.Strategy, c.RunID)); err != nil {
		return res, fmt.Errorf("send HELLO: %w", err)
	}

	for {
		if c.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("read: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.logf("drop undecodable frame: %v", err)
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			if err := json.Unmarshal(msg, &res.Welcome); err != nil {
				return res, fmt.Errorf("decode WELCOME: %w", err)
			}
			if res.Welcome.ProtocolVersion != protocol.Version {
				return res, fmt.Errorf("host speaks %q, want %s", res.Welcome.ProtocolVersion, protocol.Version)
			}
			c.logf("WELCOME team_id=%s fish=%d cycle_ms=%d total_cycles=%d",
				res.Welcome.TeamID, res.Welcome.FishCount, res.Welcome.CycleMs, res.Welcome.TotalCycles)
			if c.Hooks.OnWelcome != nil {
				c.Hooks.OnWelcome(res.Welcome)
			}

		case protocol.TypeObs:
			act, valid := c.answer(msg, res.Welcome)
			if !valid {
				res.Invalid++
			}
			if c.Validator != nil {
				if err := c.Validator.ValidateAct(act); err != nil {
					res.InvalidActs++
					c.logf("ACT cycle %d fails schema, sending anyway: %v", act.Cycle, err)
				}
			}
			if err := writeJSON(conn, act); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				return res, fmt.Errorf("send ACT cycle %d: %w", act.Cycle, err)
			}
			res.Cycles++

		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			c.logf("host error %s: %s", e.Code, e.Message)

		case protocol.TypeEnd:
			var end protocol.EndMsg
			_ = json.Unmarshal(msg, &end)
			res.EndReason = end.Reason
			c.logf("END reason=%s after %d cycles (%d invalid)", end.Reason, res.Cycles, res.Invalid)
			if c.Hooks.OnEnd != nil {
				c.Hooks.OnEnd(end.Reason)
			}
			return res, nil
		}
	}
}

// answer builds the ACT for one OBS frame. Frames that fail validation or decoding are
// answered with Stop for every fish so the host never waits on us.
func (c *Client) answer(msg []byte, welcome protocol.WelcomeMsg) (protocol.ActMsg, bool) {
	var obs protocol.ObsMsg
	err := json.Unmarshal(msg, &obs)
	if err == nil && c.Validator != nil {
		err = c.Validator.ValidateObs(msg)
	}
	if err != nil {
		cycle, fish := looseFrame(msg, welcome.FishCount)
		c.logf("invalid OBS cycle %d: %v", cycle, err)
		cmds := model.StopAll(len(fish))
		if c.Hooks.OnCycle != nil {
			c.Hooks.OnCycle(cycle, nil, cmds)
		}
		return protocol.NewAct(cycle, fish, cmds), false
	}

	w := obs.World()
	cmds := model.Fit(c.Decider.Decide(w), len(w.Fish))
	if c.Hooks.OnCycle != nil {
		c.Hooks.OnCycle(w.Cycle, w, cmds)
	}
	return protocol.NewAct(w.Cycle, w.Fish, cmds), true
}

// looseFrame recovers the cycle and fish ids from a frame that did not validate.
func looseFrame(msg []byte, fishCount int) (int, []model.Fish) {
	var loose struct {
		Cycle int `json:"cycle"`
		Fish  []struct {
			ID int `json:"id"`
		} `json:"fish"`
	}
	_ = json.Unmarshal(msg, &loose)
	if len(loose.Fish) > 0 {
		fish := make([]model.Fish, len(loose.Fish))
		for i, f := range loose.Fish {
			fish[i].ID = f.ID
		}
		return loose.Cycle, fish
	}
	fish := make([]model.Fish, fishCount)
	for i := range fish {
		fish[i].ID = i
	}
	return loose.Cycle, fish
}

func (c *Client) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
