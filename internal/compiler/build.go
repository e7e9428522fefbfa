package compiler

import (
	"context"

	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/ir"
)

// Build turns a compiled program into engine threads, in declaration
// order. Register them with a single Set call to keep that order as
// priority.
func Build(spec *ir.ProgramSpec) []engine.Named {
	threads := make([]engine.Named, 0, len(spec.Threads))
	for _, t := range spec.Threads {
		threads = append(threads, buildThread(t))
	}
	return threads
}

// Effects builds the effect handlers of one program instance. It gets the
// instance's unrestricted trigger so handlers can feed events back in.
type Effects func(trigger engine.TriggerFunc) engine.Handlers

// StaticEffects ignores the trigger and installs h on every instance.
func StaticEffects(h engine.Handlers) Effects {
	return func(engine.TriggerFunc) engine.Handlers { return h }
}

// NewProgram wraps a compiled program as a program factory. Each Init
// builds the program's threads afresh, registers them on a new engine and
// installs effects. Only the program's public events pass the returned
// program's trigger. effects may be nil.
func NewProgram(spec *ir.ProgramSpec, effects Effects, opts ...engine.EngineOption) (*engine.ProgramFactory, error) {
	return engine.NewProgram(engine.ProgramDef{
		PublicEvents: spec.Public,
		Options:      opts,
		Setup: func(_ context.Context, pc engine.ProgramContext) (engine.Handlers, error) {
			pc.Threads.Set(Build(spec)...)
			if effects == nil {
				return nil, nil
			}
			return effects(pc.Trigger), nil
		},
	})
}

func buildThread(t ir.ThreadSpec) engine.Named {
	rules := make([]engine.Rule, len(t.Steps))
	for i, s := range t.Steps {
		rules[i] = engine.Sync(syncPoint(s))
	}

	var rule engine.Rule
	switch {
	case t.Forever:
		rule = engine.Forever(rules...)
	case t.Repeat > 1:
		rule = engine.Repeat(t.Repeat, rules...)
	default:
		rule = engine.Sequence(rules...)
	}
	return engine.Thread(t.Name, rule)
}

func syncPoint(s ir.StepSpec) engine.SyncPoint {
	var p engine.SyncPoint
	for _, r := range s.Request {
		ev := engine.Event{Name: r.Name}
		if len(r.Payload) > 0 {
			ev.Payload = r.Payload
		}
		p.Request = append(p.Request, ev)
	}
	p.WaitFor = listeners(s.WaitFor)
	p.Block = listeners(s.Block)
	p.Interrupt = listeners(s.Interrupt)
	return p
}

// listeners matches by name alone unless the spec constrains the payload.
func listeners(ms []ir.MatchSpec) engine.Listeners {
	if len(ms) == 0 {
		return nil
	}
	out := make(engine.Listeners, 0, len(ms))
	for _, m := range ms {
		if len(m.Payload) == 0 {
			out = append(out, engine.Name(m.Name))
			continue
		}
		out = append(out, engine.Predicate(func(ev engine.Event) bool {
			return m.Matches(ev.Name, ev.Payload)
		}))
	}
	return out
}
