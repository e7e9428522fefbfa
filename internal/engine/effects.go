package engine

import "sync"

// EffectFunc handles the payload of a selected event. A returned error ends
// the current super-step and is reported to the caller of Trigger.
type EffectFunc func(payload any) error

// Handlers maps event names to effect handlers.
type Handlers map[string]EffectFunc

// Disconnect removes a set of registrations. Calling it more than once is
// a no-op.
type Disconnect func()

type effectEntry struct {
	fn    EffectFunc
	owner uint64
}

// effectRegistry holds at most one handler per event name. A later
// registration replaces an earlier one; each registration remembers which
// RegisterEffects call owns it so a stale Disconnect cannot remove a
// handler that has since been replaced.
type effectRegistry struct {
	mu       sync.Mutex
	handlers map[string]effectEntry
	gen      uint64
}

func newEffectRegistry() *effectRegistry {
	return &effectRegistry{handlers: make(map[string]effectEntry)}
}

func (r *effectRegistry) register(h Handlers) Disconnect {
	r.mu.Lock()
	r.gen++
	owner := r.gen
	names := make([]string, 0, len(h))
	for name, fn := range h {
		if name == "" || fn == nil {
			continue
		}
		r.handlers[name] = effectEntry{fn: fn, owner: owner}
		names = append(names, name)
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, name := range names {
				if r.handlers[name].owner == owner {
					delete(r.handlers, name)
				}
			}
		})
	}
}

func (r *effectRegistry) lookup(name string) (EffectFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.handlers[name]
	return e.fn, ok
}

func (r *effectRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
