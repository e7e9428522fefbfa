package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/plaited/behavioral/internal/compiler"
	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/ir"
	"github.com/plaited/behavioral/internal/store"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	store  *store.Store
	logger *slog.Logger
	runIDs func() string
}

// WithStore records the run, its triggers and its selections to st.
func WithStore(st *store.Store) Option {
	return func(c *config) { c.store = st }
}

// WithLogger sets the engine logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRunIDs supplies run ids for recorded runs whose scenario does not
// fix one. Tests pass a sequential generator so stored ids are stable.
func WithRunIDs(next func() string) Option {
	return func(c *config) { c.runIDs = next }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load, compile and validate the scenario's program
//  2. Build a fresh program instance with the scenario's strategy and effects
//  3. Inject each trigger through the program's public trigger
//  4. Evaluate assertions against the trace and the final registry
//
// A trigger error stops the run. It fails the result unless the scenario
// has an error assertion. Errors that prevent the run from starting at all
// are returned.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, hash, err := loadProgram(scenario.Program, scenario.ProgramName)
	if err != nil {
		return nil, err
	}
	strategy, err := engine.ParseStrategy(scenario.Strategy, scenario.Seed)
	if err != nil {
		return nil, err
	}

	effects, err := buildEffects(scenario.Effects)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Program = spec.Name
	result.ProgramHash = hash
	result.Seed = scenario.Seed

	var rec *store.Recorder
	if cfg.store != nil {
		id := scenario.RunID
		if id == "" && cfg.runIDs != nil {
			id = cfg.runIDs()
		}
		rec, err = cfg.store.Record(ctx, store.RunMeta{
			ID:          id,
			Program:     spec.Name,
			ProgramHash: hash,
			Source:      scenario.Program,
			Scenario:    scenario.Path,
			Strategy:    strategy.Name(),
			Seed:        scenario.Seed,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		result.RunID = rec.Run().ID
	}

	sess := session{
		spec:     spec,
		strategy: strategy,
		maxSteps: scenario.MaxSteps,
		effects:  effects,
		logger:   cfg.logger,
		rec:      rec,
	}
	runErr, err := sess.run(ctx, result, func(trigger engine.TriggerFunc) error {
		return runTriggers(ctx, scenario.Triggers, trigger)
	})
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		cfg.logger.Info("scenario stopped", "scenario", scenario.Name, "error", runErr)
	}

	if runErr != nil && !scenario.expectsError() {
		result.AddError(fmt.Sprintf("unexpected error: %v", runErr))
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// session is one execution of a program: a fresh instance, a strategy and
// optional recording.
type session struct {
	spec     *ir.ProgramSpec
	strategy engine.Strategy
	maxSteps int
	effects  compiler.Effects
	logger   *slog.Logger
	rec      *store.Recorder
}

// run builds a program instance, lets inject drive it and fills result
// with the trace and final thread statuses. Setup failures are returned as
// err; the error that stopped the run is returned as runErr and stored in
// result.Err. A recording is finished before run returns.
func (s session) run(ctx context.Context, result *Result, inject func(engine.TriggerFunc) error) (runErr, err error) {
	var traceErr error
	listener := func(m engine.Message) {
		if s.rec != nil {
			s.rec.Listener()(m)
		}
		snap, ok := m.(engine.SelectionSnapshot)
		if !ok {
			return
		}
		sel, err := store.SelectionFromSnapshot(snap)
		if err != nil {
			if traceErr == nil {
				traceErr = err
			}
			return
		}
		result.AddTrace(TraceEvent{Seq: sel.Seq, Event: sel.Event, Payload: sel.Payload, Thread: sel.Thread})
	}

	engineOpts := []engine.EngineOption{
		engine.WithStrategy(s.strategy),
		engine.WithLogger(s.logger),
		engine.WithSnapshot(listener),
	}
	if s.maxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxSteps(s.maxSteps))
	}

	factory, err := compiler.NewProgram(s.spec, s.effects, engineOpts...)
	if err != nil {
		return nil, s.abort(err)
	}
	prog, err := factory.Init(ctx)
	if err != nil {
		return nil, s.abort(err)
	}
	defer prog.Disconnect()

	eng := prog.Engine()
	result.Strategy = eng.Strategy().Name()
	s.logger.Debug("program started",
		"program", s.spec.Name,
		"strategy", result.Strategy,
		"threads", eng.Threads().Len())

	trigger := engine.TriggerFunc(prog.Trigger)
	if s.rec != nil {
		trigger = s.rec.Trigger(trigger)
	}

	runErr = inject(trigger)
	if runErr == nil {
		runErr = traceErr
	}
	result.Threads = eng.Threads().Statuses()
	if runErr != nil {
		result.Err = runErr.Error()
	}

	if s.rec != nil {
		if err := s.rec.Finish(runErr); err != nil {
			return runErr, fmt.Errorf("failed to record run: %w", err)
		}
	}
	return runErr, nil
}

// abort finishes a recording whose program never started.
func (s session) abort(err error) error {
	if s.rec != nil {
		_ = s.rec.Finish(err)
	}
	return err
}

// loadProgram compiles and validates the named program of a CUE file and
// returns it with its hash.
func loadProgram(path, name string) (*ir.ProgramSpec, string, error) {
	spec, err := compiler.LoadProgram(path, name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load program: %w", err)
	}
	if verrs := compiler.Validate(spec); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, "", fmt.Errorf("invalid program %s: %w", spec.Name, errors.Join(errs...))
	}
	hash, err := ir.ProgramHash(*spec)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash program: %w", err)
	}
	return spec, hash, nil
}

func runTriggers(ctx context.Context, steps []TriggerStep, trigger engine.TriggerFunc) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := toEvent(step)
		if err != nil {
			return fmt.Errorf("triggers[%d]: %w", i, err)
		}
		if err := trigger(ev); err != nil {
			return fmt.Errorf("triggers[%d] %s: %w", i, step.Event, err)
		}
	}
	return nil
}

// buildEffects turns declarative effects into handlers bound to each
// program instance's trigger. Payloads are converted once, up front.
func buildEffects(effects []Effect) (compiler.Effects, error) {
	if len(effects) == 0 {
		return nil, nil
	}

	type chain struct {
		events []engine.Event
		fail   string
	}
	chains := make(map[string]chain, len(effects))
	for i, eff := range effects {
		c := chain{fail: eff.Fail}
		for j, step := range eff.Trigger {
			ev, err := toEvent(step)
			if err != nil {
				return nil, fmt.Errorf("effects[%d].trigger[%d]: %w", i, j, err)
			}
			c.events = append(c.events, ev)
		}
		chains[eff.On] = c
	}

	return func(trigger engine.TriggerFunc) engine.Handlers {
		handlers := make(engine.Handlers, len(chains))
		for name, c := range chains {
			handlers[name] = func(any) error {
				for _, ev := range c.events {
					if err := trigger(ev); err != nil {
						return err
					}
				}
				if c.fail != "" {
					return errors.New(c.fail)
				}
				return nil
			}
		}
		return handlers
	}, nil
}

// toEvent converts a YAML trigger into an engine event with an IR payload.
func toEvent(step TriggerStep) (engine.Event, error) {
	ev := engine.Event{Name: step.Event}
	if len(step.Payload) == 0 {
		return ev, nil
	}
	payload, err := convertPayload(step.Payload)
	if err != nil {
		return engine.Event{}, err
	}
	ev.Payload = payload
	return ev, nil
}

// convertPayload converts a YAML-parsed map to an ir.IRObject. YAML decodes
// integers as int, which ir.FromAny accepts; floats and nulls are rejected.
func convertPayload(m map[string]any) (ir.IRObject, error) {
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("payload: expected object, got %T", v)
	}
	return obj, nil
}
