package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Engine runs behavioral threads in super-steps.
//
// Every Trigger call enqueues its event. The caller that finds the engine
// idle becomes the drainer and resolves queued events one super-step at a
// time until the queue is empty; every other caller returns immediately.
// Effects that trigger events therefore never recurse into the scheduler.
//
// Thread-safety model:
//   - Trigger, RegisterEffects, Threads and UseSnapshot: safe from any goroutine
//   - cursors, effects and the snapshot listener: run on the draining goroutine
type Engine struct {
	threads  *Threads
	effects  *effectRegistry
	queue    *eventQueue
	clock    *Clock
	quota    *QuotaEnforcer
	strategy Strategy
	logger   *slog.Logger
	maxSteps int
	strict   bool

	stepping atomic.Bool

	snapMu   sync.Mutex
	snapshot SnapshotListener
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStrategy replaces the default Priority strategy.
func WithStrategy(s Strategy) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxSteps sets how many events one super-step may select before it is
// abandoned with a StepsExceededError.
//
// Default: 10000 steps (DefaultMaxSteps). Zero or less disables the limit.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithSnapshot installs the snapshot listener at construction. A later
// UseSnapshot call fails with ErrSnapshotAlreadySet.
func WithSnapshot(listener SnapshotListener) EngineOption {
	return func(e *Engine) {
		e.snapshot = listener
	}
}

// WithStrictSyncPoints turns a sync point that requests and blocks the
// same event into a ConfigError returned from Trigger. Without it the
// conflict is logged and published, and the block wins.
func WithStrictSyncPoints() EngineOption {
	return func(e *Engine) {
		e.strict = true
	}
}

// New creates an idle engine with an empty thread registry.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		threads:  newThreads(),
		effects:  newEffectRegistry(),
		queue:    newEventQueue(),
		clock:    NewClock(),
		strategy: Priority(),
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.quota = NewQuotaEnforcer(e.maxSteps)
	e.threads.onDuplicate = e.duplicateThread
	return e
}

// Threads returns the engine's thread registry.
func (e *Engine) Threads() *Threads {
	return e.threads
}

// RegisterEffects installs effect handlers. For each event name the most
// recent registration wins. The returned Disconnect removes the handlers of
// this call that have not been replaced since.
func (e *Engine) RegisterEffects(h Handlers) Disconnect {
	return e.effects.register(h)
}

// UseSnapshot installs the snapshot listener. It can be set once per
// engine.
func (e *Engine) UseSnapshot(listener SnapshotListener) error {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	if e.snapshot != nil {
		return ErrSnapshotAlreadySet
	}
	e.snapshot = listener
	return nil
}

// Strategy returns the selection strategy in use.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Seq returns the sequence number of the last selected event.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

// Trigger injects an external event.
//
// If the engine is idle the call runs super-steps until the queue is empty
// and returns the first error that ended one. If a super-step is already
// in progress, on this goroutine (from an effect) or another, the event is
// queued for the active drainer and Trigger returns nil.
func (e *Engine) Trigger(ev Event) error {
	if ev.Name == "" {
		return &ConfigError{Code: ErrCodeEmptyEvent, Message: "event name must not be empty"}
	}
	e.queue.Enqueue(ev)

	for e.queue.Len() > 0 {
		if !e.stepping.CompareAndSwap(false, true) {
			return nil
		}
		if err := e.drain(); err != nil {
			return err
		}
	}
	return nil
}

// drain runs queued events to quiescence. The stepping flag is cleared on
// return, including when an effect panics.
func (e *Engine) drain() error {
	defer e.stepping.Store(false)

	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := e.superStep(ev); err != nil {
			if n := e.queue.Clear(); n > 0 {
				e.logger.Warn("discarding queued events after failed super-step",
					"event", ev.Name,
					"discarded", n)
			}
			return err
		}
	}
}

func (e *Engine) publish(msg Message) {
	e.snapMu.Lock()
	listener := e.snapshot
	e.snapMu.Unlock()
	if listener != nil {
		listener(msg)
	}
}

func (e *Engine) duplicateThread(name string) {
	msg := `Thread "` + name + `" already exists and cannot be replaced. Use the 'interrupt' idiom to terminate threads explicitly.`
	e.logger.Warn("duplicate thread ignored", "thread", name)
	e.publish(ThreadsWarning{Thread: name, Message: msg})
}
