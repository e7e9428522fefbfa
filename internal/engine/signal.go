package engine

import (
	"errors"
	"sync"
)

// Signal holds a value and triggers an event carrying it each time it is
// set. Programs use signals to share state with the outside world through
// the same trigger path as any other event.
//
// Signal is safe for concurrent use. Listeners run outside the lock, so a
// trigger may read or set the signal again.
type Signal[T any] struct {
	mu    sync.Mutex
	value T
	subs  subscribers[T]
}

// NewSignal creates a signal holding initial.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v and triggers every listener's event with v as payload.
// Errors from the triggers are joined.
func (s *Signal[T]) Set(v T) error {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	return s.subs.notify(v)
}

// Listen triggers event with the new value on every Set. With replay the
// current value is triggered once right away. The returned Disconnect
// stops the notifications.
func (s *Signal[T]) Listen(event string, trigger TriggerFunc, replay bool) (Disconnect, error) {
	return listen(&s.subs, event, trigger, replay, s.Get)
}

// Bind listens with the program's trigger and disconnects when the program
// does.
func (s *Signal[T]) Bind(pc ProgramContext, event string, replay bool) error {
	return bind(pc, func(trigger TriggerFunc) (Disconnect, error) {
		return s.Listen(event, trigger, replay)
	})
}

func (s *Signal[T]) subscribe(fn func()) Disconnect {
	return s.subs.add(func(T) error {
		fn()
		return nil
	})
}

// source is anything a Computed can depend on.
type source interface {
	subscribe(fn func()) Disconnect
}

// Computed derives a value from other signals. The value is computed on
// first Get and recomputed whenever a dependency is set while the
// computed has listeners. Dependencies are only subscribed to while at
// least one listener is attached.
type Computed[T any] struct {
	compute func() T
	deps    []source

	mu       sync.Mutex
	value    T
	computed bool
	depsOff  []Disconnect
	subs     subscribers[T]
}

// NewComputed creates a computed value over the given signals or computeds.
func NewComputed[T any](compute func() T, deps ...source) *Computed[T] {
	return &Computed[T]{compute: compute, deps: deps}
}

// Get returns the cached value, computing it on first use.
func (c *Computed[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.computed {
		c.value = c.compute()
		c.computed = true
	}
	return c.value
}

// Listen triggers event with the recomputed value whenever a dependency
// changes. With replay the current value is triggered once right away.
func (c *Computed[T]) Listen(event string, trigger TriggerFunc, replay bool) (Disconnect, error) {
	cb := triggerWith[T](event, trigger)

	c.mu.Lock()
	if c.subs.len() == 0 {
		for _, d := range c.deps {
			c.depsOff = append(c.depsOff, d.subscribe(c.update))
		}
	}
	disconnect := c.subs.add(cb)
	c.mu.Unlock()

	var err error
	if replay {
		err = cb(c.Get())
	}
	return func() {
		disconnect()
		c.mu.Lock()
		var off []Disconnect
		if c.subs.len() == 0 {
			off, c.depsOff = c.depsOff, nil
		}
		c.mu.Unlock()
		for _, d := range off {
			d()
		}
	}, err
}

// Bind listens with the program's trigger and disconnects when the program
// does.
func (c *Computed[T]) Bind(pc ProgramContext, event string, replay bool) error {
	return bind(pc, func(trigger TriggerFunc) (Disconnect, error) {
		return c.Listen(event, trigger, replay)
	})
}

func (c *Computed[T]) subscribe(fn func()) Disconnect {
	return c.subs.add(func(T) error {
		fn()
		return nil
	})
}

// update recomputes the value and notifies listeners. Trigger errors have
// no caller to return to here, so they are dropped.
func (c *Computed[T]) update() {
	c.mu.Lock()
	c.value = c.compute()
	c.computed = true
	v := c.value
	c.mu.Unlock()
	_ = c.subs.notify(v)
}

func triggerWith[T any](event string, trigger TriggerFunc) func(T) error {
	return func(v T) error {
		return trigger(Event{Name: event, Payload: v})
	}
}

func listen[T any](subs *subscribers[T], event string, trigger TriggerFunc, replay bool, get func() T) (Disconnect, error) {
	cb := triggerWith[T](event, trigger)
	var err error
	if replay {
		err = cb(get())
	}
	return subs.add(cb), err
}

func bind(pc ProgramContext, attach func(TriggerFunc) (Disconnect, error)) error {
	disconnect, err := attach(pc.Trigger)
	if pc.OnDisconnect != nil {
		pc.OnDisconnect(disconnect)
	}
	return err
}

// subscribers keeps callbacks in registration order.
type subscribers[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T) error
}

func (s *subscribers[T]) add(fn func(T) error) Disconnect {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.entries = append(s.entries, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, e := range s.entries {
				if e.id == id {
					s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *subscribers[T]) notify(v T) error {
	s.mu.Lock()
	entries := append([]subscriber[T](nil), s.entries...)
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.fn(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
