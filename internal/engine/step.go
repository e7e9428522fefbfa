package engine

import (
	"fmt"
	"sort"
)

// bidder is a parked thread with its requests evaluated for one iteration.
type bidder struct {
	parkedSlot
	requests []Event
}

// superStep resolves one triggered event to quiescence.
//
// Each iteration advances running threads to their next sync point,
// computes the candidate pool from a copy of the registry, selects one
// event, wakes or interrupts the threads it concerns, publishes the
// selection and finally runs the event's effect.
func (e *Engine) superStep(seed Event) error {
	e.quota.Reset()
	seeded := true

	e.logger.Debug("super-step started",
		"event", seed.Name,
		"threads", e.threads.Len(),
		"effects", e.effects.len(),
		"max_steps", e.quota.MaxSteps())

	for {
		if err := e.advance(); err != nil {
			return err
		}

		bidders := e.bidders()
		pool := e.pool(seed, seeded, bidders)

		selectable := make([]Candidate, 0, len(pool))
		for _, b := range pool {
			if len(b.BlockedBy) > 0 {
				if b.Trigger {
					e.logger.Debug("triggered event blocked", "event", seed.Name, "blocked_by", b.BlockedBy)
					seeded = false
				}
				continue
			}
			selectable = append(selectable, Candidate{
				Event:    b.Event,
				Thread:   b.Thread,
				Priority: b.Priority,
				Rank:     b.Rank,
				Trigger:  b.Trigger,
			})
		}

		chosen, ok := e.strategy.Select(selectable)
		if !ok {
			e.logger.Debug("super-step quiescent", "event", seed.Name, "steps", e.quota.Current())
			return nil
		}
		// Any selection of the triggered name consumes the trigger, whichever
		// bid won. Identical names resolve to one event instance.
		if chosen.Trigger || chosen.Event.Name == seed.Name {
			seeded = false
		}

		if err := e.quota.Check(seed.Name); err != nil {
			e.logger.Error("super-step aborted", "event", seed.Name, "error", err)
			return err
		}
		seq := e.clock.Next()
		ev := chosen.Event

		e.resolve(ev, bidders)

		for i := range pool {
			pool[i].Selected = pool[i].Thread == chosen.Thread && pool[i].Rank == chosen.Rank
		}
		e.logger.Debug("event selected", "seq", seq, "event", ev.Name, "thread", chosen.Thread)
		e.publish(SelectionSnapshot{
			Seq:     seq,
			Event:   ev,
			Bids:    pool,
			Threads: e.threads.Statuses(),
		})

		if err := e.runEffect(ev); err != nil {
			// Threads woken by ev still move to their next sync point.
			advanceErr := e.advance()
			e.logger.Error("effect failed", "seq", seq, "event", ev.Name, "error", err)
			e.publish(FeedbackError{Event: ev, Err: err})
			if advanceErr != nil {
				e.logger.Warn("sync point check failed after effect error", "error", advanceErr)
			}
			return &EffectError{Event: ev, Err: err}
		}
	}
}

// advance moves every running thread to its next sync point. Threads that
// finish, or produce an empty point, are removed.
func (e *Engine) advance() error {
	for _, s := range e.threads.running() {
		resume, cursor, ok := e.threads.resumeEvent(s)
		if !ok {
			continue
		}
		point, more := cursor.Next(resume)
		if !more || point.IsEmpty() {
			e.threads.remove(s)
			e.logger.Debug("thread completed", "thread", s.name)
			continue
		}
		e.threads.park(s, point)

		if conflicts := point.Conflicts(); len(conflicts) > 0 {
			if e.strict {
				return newConflictError(s.name, conflicts)
			}
			e.logger.Warn("sync point requests blocked events",
				"thread", s.name,
				"events", conflicts)
			e.publish(SyncPointConflict{Thread: s.name, Events: conflicts})
		}
	}
	return nil
}

// bidders snapshots the parked threads and evaluates their requests.
func (e *Engine) bidders() []bidder {
	parked := e.threads.pending()
	out := make([]bidder, len(parked))
	for i, p := range parked {
		out[i] = bidder{parkedSlot: p, requests: p.point.Requests()}
	}
	return out
}

// pool builds the full bid list for one iteration, blocked bids included.
func (e *Engine) pool(seed Event, seeded bool, bidders []bidder) []Bid {
	var bids []Bid
	if seeded {
		bids = append(bids, Bid{
			Thread:  triggerThread(seed.Name),
			Event:   seed,
			Trigger: true,
		})
	}
	for _, b := range bidders {
		for rank, ev := range b.requests {
			bids = append(bids, Bid{
				Thread:   b.name,
				Event:    ev,
				Priority: b.rank,
				Rank:     rank,
			})
		}
	}

	for i := range bids {
		for _, b := range bidders {
			if b.point.Block.Matches(bids[i].Event) {
				bids[i].BlockedBy = append(bids[i].BlockedBy, b.name)
			}
			if b.point.Interrupt.Matches(bids[i].Event) {
				bids[i].Interrupts = append(bids[i].Interrupts, b.name)
			}
		}
	}

	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Priority != bids[j].Priority {
			return bids[i].Priority < bids[j].Priority
		}
		return bids[i].Rank < bids[j].Rank
	})
	return bids
}

// resolve applies the selected event to the parked threads of this
// iteration. Interrupt takes precedence over waking. Threads deleted since
// the snapshot was taken are skipped.
func (e *Engine) resolve(ev Event, bidders []bidder) {
	for _, b := range bidders {
		if !e.threads.alive(b.s) {
			continue
		}
		switch {
		case b.point.Interrupt.Matches(ev):
			e.threads.remove(b.s)
			e.logger.Debug("thread interrupted", "thread", b.name, "event", ev.Name)
		case b.point.wakes(ev, b.requests):
			e.threads.wake(b.s, ev)
		}
	}
}

func (e *Engine) runEffect(ev Event) error {
	fn, ok := e.effects.lookup(ev.Name)
	if !ok {
		return nil
	}
	return fn(ev.Payload)
}

func triggerThread(name string) string {
	return fmt.Sprintf("trigger(%s)", name)
}
