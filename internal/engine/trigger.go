package engine

import (
	"fmt"
	"strings"
)

// TriggerFunc injects an event into an engine.
type TriggerFunc func(ev Event) error

// PublicTrigger wraps the engine's trigger with an allow-list. Events whose
// name is not listed are rejected with a ConfigError and reported as a
// RestrictedTriggerError snapshot message. An empty allow-list rejects
// every event.
func PublicTrigger(e *Engine, allow ...string) TriggerFunc {
	allowed := toSet(allow)
	list := strings.Join(allow, ", ")
	return func(ev Event) error {
		if !allowed[ev.Name] {
			return e.reject(ev, fmt.Sprintf("Event type %q is not in the public set: [%s]", ev.Name, list))
		}
		return e.Trigger(ev)
	}
}

// RestrictedTrigger wraps the engine's trigger with a deny-list. Listed
// events are rejected the same way PublicTrigger rejects unlisted ones. An
// empty deny-list allows every event.
func RestrictedTrigger(e *Engine, deny ...string) TriggerFunc {
	denied := toSet(deny)
	list := strings.Join(deny, ", ")
	return func(ev Event) error {
		if denied[ev.Name] {
			return e.reject(ev, fmt.Sprintf("Event type %q is in the restricted set: [%s]", ev.Name, list))
		}
		return e.Trigger(ev)
	}
}

func (e *Engine) reject(ev Event, msg string) error {
	e.logger.Warn("trigger rejected", "event", ev.Name, "reason", msg)
	e.publish(RestrictedTriggerError{Event: ev, Message: msg})
	return newNotPublicError(ev.Name, msg)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
