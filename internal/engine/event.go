package engine

// Event is the unit of coordination selected by the engine.
//
// Events are compared by Name only. Payload is carried through to effect
// handlers and predicates without being examined by the scheduler.
type Event struct {
	Name    string
	Payload any
}

// String returns the event name.
func (e Event) String() string {
	return e.Name
}

// Matcher decides whether a sync point idiom (waitFor, block, interrupt)
// applies to an event.
type Matcher interface {
	Matches(ev Event) bool
}

// Name matches events with exactly this name.
type Name string

// Matches implements Matcher.
func (n Name) Matches(ev Event) bool {
	return string(n) == ev.Name
}

// Predicate matches events for which the function returns true.
// A nil Predicate matches nothing.
type Predicate func(ev Event) bool

// Matches implements Matcher.
func (p Predicate) Matches(ev Event) bool {
	return p != nil && p(ev)
}

// Listeners is a set of matchers. An event matches the set if any member
// matches it. The empty set matches nothing.
type Listeners []Matcher

// Matches reports whether any matcher in the set matches ev.
func (l Listeners) Matches(ev Event) bool {
	for _, m := range l {
		if m != nil && m.Matches(ev) {
			return true
		}
	}
	return false
}

// Names builds a listener set matching any of the given event names.
func Names(names ...string) Listeners {
	l := make(Listeners, 0, len(names))
	for _, n := range names {
		l = append(l, Name(n))
	}
	return l
}

// When builds a listener set from a single predicate.
func When(fn func(ev Event) bool) Listeners {
	return Listeners{Predicate(fn)}
}

// Any builds a listener set from arbitrary matchers, so names and
// predicates can be mixed in one idiom.
func Any(matchers ...Matcher) Listeners {
	return Listeners(matchers)
}
