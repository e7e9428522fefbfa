package engine

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Candidate is one selectable bid: an event proposed by a thread (or
// injected by Trigger) that no thread currently blocks.
//
// Priority is the proposing thread's registration rank; triggered events
// use priority 0. Rank is the position within the thread's request list.
type Candidate struct {
	Event    Event
	Thread   string
	Priority int
	Rank     int
	Trigger  bool
}

// less orders candidates by (Priority, Rank).
func (c Candidate) less(o Candidate) bool {
	if c.Priority != o.Priority {
		return c.Priority < o.Priority
	}
	return c.Rank < o.Rank
}

// Strategy picks one event among the selectable candidates.
//
// The set of strategies is closed: Priority, Randomized and Chaos. Select
// receives candidates sorted by (Priority, Rank) and must return one of
// them, or false if the list is empty.
type Strategy interface {
	Name() string
	Select(candidates []Candidate) (Candidate, bool)

	strategy()
}

// Strategy names accepted by ParseStrategy.
const (
	StrategyPriority = "priority"
	StrategyRandom   = "random"
	StrategyChaos    = "chaos"
)

// Priority returns the default deterministic strategy: the candidate with
// the lowest (Priority, Rank) tuple wins.
func Priority() Strategy {
	return priorityStrategy{}
}

// Randomized samples uniformly among distinct selectable event names.
// Two threads requesting the same name count once. The seed makes runs
// reproducible.
func Randomized(seed uint64) Strategy {
	return &randomStrategy{rng: newRand(seed)}
}

// Chaos returns an adversarial strategy for fuzzing thread programs. It
// favors the bids a priority-ordered program least expects to win.
func Chaos(seed uint64) Strategy {
	return &chaosStrategy{rng: newRand(seed)}
}

// ParseStrategy maps a strategy name to a Strategy. The empty name selects
// Priority.
func ParseStrategy(name string, seed uint64) (Strategy, error) {
	switch name {
	case "", StrategyPriority:
		return Priority(), nil
	case StrategyRandom:
		return Randomized(seed), nil
	case StrategyChaos:
		return Chaos(seed), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: must be one of %s, %s, %s",
			name, StrategyPriority, StrategyRandom, StrategyChaos)
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type priorityStrategy struct{}

func (priorityStrategy) strategy() {}

func (priorityStrategy) Name() string { return StrategyPriority }

func (priorityStrategy) Select(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.less(best) {
			best = c
		}
	}
	return best, true
}

type randomStrategy struct {
	rng *rand.Rand
}

func (*randomStrategy) strategy() {}

func (*randomStrategy) Name() string { return StrategyRandom }

func (s *randomStrategy) Select(candidates []Candidate) (Candidate, bool) {
	distinct := distinctByName(candidates)
	if len(distinct) == 0 {
		return Candidate{}, false
	}
	return distinct[s.rng.IntN(len(distinct))], true
}

type chaosStrategy struct {
	rng *rand.Rand
}

func (*chaosStrategy) strategy() {}

func (*chaosStrategy) Name() string { return StrategyChaos }

// Select flips a seeded coin between two adversarial picks: the bid with
// the highest (Priority, Rank) tuple, or the event name with the fewest
// requesting threads.
func (s *chaosStrategy) Select(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if s.rng.IntN(2) == 0 {
		worst := candidates[0]
		for _, c := range candidates[1:] {
			if worst.less(c) {
				worst = c
			}
		}
		return worst, true
	}

	counts := make(map[string]int)
	for _, c := range candidates {
		counts[c.Event.Name]++
	}
	distinct := distinctByName(candidates)
	rarest := distinct[len(distinct)-1]
	for i := len(distinct) - 1; i >= 0; i-- {
		if counts[distinct[i].Event.Name] < counts[rarest.Event.Name] {
			rarest = distinct[i]
		}
	}
	return rarest, true
}

// distinctByName keeps the best-ranked candidate per event name, ordered
// by that candidate's (Priority, Rank).
func distinctByName(candidates []Candidate) []Candidate {
	best := make(map[string]int)
	var out []Candidate
	for _, c := range candidates {
		if i, ok := best[c.Event.Name]; ok {
			if c.less(out[i]) {
				out[i] = c
			}
			continue
		}
		best[c.Event.Name] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
