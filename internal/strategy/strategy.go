// Package strategy builds the decision layer the fish client runs every cycle.
package strategy

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/choreo"
	"aquapolo.ai/internal/strategy/fsm"
	"aquapolo.ai/internal/strategy/polo"
)

// Strategy turns one world snapshot into one command per fish. Decide returns a new slice
// on every call.
type Strategy interface {
	TeamName() string
	Decide(w *model.World) []model.Command
}

type Options struct {
	Logger   *log.Logger
	Observer fsm.Observer
}

type factory func(tu tuning.Tuning, opts Options) (Strategy, error)

var factories = map[string]factory{
	choreo.Name: func(tu tuning.Tuning, opts Options) (Strategy, error) {
		return choreo.New(tu, opts.Logger, opts.Observer)
	},
	polo.Name: func(tu tuning.Tuning, opts Options) (Strategy, error) {
		return polo.New(tu, opts.Logger, opts.Observer)
	},
}

func Names() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, tu tuning.Tuning, opts Options) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	f, ok := factories[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %s)", name, strings.Join(Names(), ", "))
	}
	s, err := f(tu, opts)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Printf("strategy %s for team %s", key, s.TeamName())
	}
	return s, nil
}
