package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ProgramContext is what a program's setup function may use to wire
// itself: the registry, the unrestricted trigger, the snapshot hook and a
// place to register cleanup.
type ProgramContext struct {
	Threads      *Threads
	Trigger      TriggerFunc
	UseSnapshot  func(SnapshotListener) error
	OnDisconnect func(cleanup func())
}

// ProgramDef describes a behavioral program: the events outsiders may
// trigger and a setup function that registers threads and returns effect
// handlers.
type ProgramDef struct {
	PublicEvents []string
	Setup        func(ctx context.Context, pc ProgramContext) (Handlers, error)
	Options      []EngineOption
}

// Program is an initialized behavioral program.
type Program struct {
	engine  *Engine
	trigger TriggerFunc

	mu       sync.Mutex
	cleanups []func()
	closed   bool
}

// ErrNoSetup is returned by NewProgram when the definition has no setup
// function.
var ErrNoSetup = errors.New("program definition has no setup function")

// ProgramFactory creates independent program instances from one definition.
type ProgramFactory struct {
	def ProgramDef
}

// NewProgram validates def and returns a factory for it.
func NewProgram(def ProgramDef) (*ProgramFactory, error) {
	if def.Setup == nil {
		return nil, ErrNoSetup
	}
	return &ProgramFactory{def: def}, nil
}

// Init builds a fresh engine, runs the setup function and registers the
// handlers it returns. The program's public trigger only accepts the
// definition's PublicEvents.
func (f *ProgramFactory) Init(ctx context.Context) (*Program, error) {
	e := New(f.def.Options...)
	p := &Program{engine: e}

	handlers, err := f.def.Setup(ctx, ProgramContext{
		Threads:      e.Threads(),
		Trigger:      e.Trigger,
		UseSnapshot:  e.UseSnapshot,
		OnDisconnect: p.onDisconnect,
	})
	if err != nil {
		p.Disconnect()
		return nil, fmt.Errorf("program setup: %w", err)
	}

	if len(handlers) > 0 {
		p.onDisconnect(e.RegisterEffects(handlers))
	}
	p.trigger = PublicTrigger(e, f.def.PublicEvents...)
	return p, nil
}

// Trigger injects an event through the program's public trigger.
func (p *Program) Trigger(ev Event) error {
	return p.trigger(ev)
}

// Engine returns the engine backing the program.
func (p *Program) Engine() *Engine {
	return p.engine
}

// Disconnect runs every registered cleanup once, most recent first.
func (p *Program) Disconnect() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cleanups := p.cleanups
	p.cleanups = nil
	p.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

func (p *Program) onDisconnect(cleanup func()) {
	if cleanup == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cleanup()
		return
	}
	p.cleanups = append(p.cleanups, cleanup)
	p.mu.Unlock()
}
