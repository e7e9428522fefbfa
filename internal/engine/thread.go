package engine

// Cursor is a suspended behavioral thread.
//
// Next resumes the thread with the event that woke it and returns the next
// sync point. It returns false once the thread has nothing left to declare.
// The first call receives the zero Event.
type Cursor interface {
	Next(selected Event) (SyncPoint, bool)
}

// CursorFunc adapts a plain function to Cursor.
type CursorFunc func(selected Event) (SyncPoint, bool)

// Next implements Cursor.
func (f CursorFunc) Next(selected Event) (SyncPoint, bool) {
	return f(selected)
}

// Rule creates a fresh cursor each time a thread is registered. Rules are
// reusable definitions; cursors hold per-registration progress.
type Rule func() Cursor

// Func builds a rule from a factory of step functions. Use it to write a
// thread as an explicit state machine that inspects the selected event.
func Func(newStep func() func(selected Event) (SyncPoint, bool)) Rule {
	return func() Cursor {
		return CursorFunc(newStep())
	}
}

// Sync is the primitive thread: it yields exactly one sync point.
func Sync(point SyncPoint) Rule {
	return func() Cursor {
		return &syncCursor{point: point}
	}
}

type syncCursor struct {
	point SyncPoint
	done  bool
}

func (c *syncCursor) Next(Event) (SyncPoint, bool) {
	if c.done {
		return SyncPoint{}, false
	}
	c.done = true
	return c.point, true
}

// Sequence chains rules end to end. Each rule starts only after the
// previous one has completed.
func Sequence(rules ...Rule) Rule {
	return newSeqRule(rules, false, nil)
}

// Loop repeats the rules while cond returns true. cond is evaluated before
// every pass, including the first. A nil cond repeats forever.
func Loop(cond func() bool, rules ...Rule) Rule {
	return newSeqRule(rules, true, cond)
}

// Forever repeats the rules indefinitely.
func Forever(rules ...Rule) Rule {
	return Loop(nil, rules...)
}

// Repeat runs the rules n times in sequence.
func Repeat(n int, rules ...Rule) Rule {
	return func() Cursor {
		passes := 0
		return newSeqRule(rules, true, func() bool {
			passes++
			return passes <= n
		})()
	}
}

func newSeqRule(rules []Rule, loop bool, cond func() bool) Rule {
	rs := make([]Rule, len(rules))
	copy(rs, rules)
	return func() Cursor {
		return &seqCursor{rules: rs, loop: loop, cond: cond}
	}
}

// seqCursor walks its rules in order. When looping, a pass that yields no
// sync point at all ends the loop, so an empty body cannot spin forever.
type seqCursor struct {
	rules []Rule
	loop  bool
	cond  func() bool

	idx      int
	cur      Cursor
	inPass   bool
	produced bool
	done     bool
}

func (c *seqCursor) Next(selected Event) (SyncPoint, bool) {
	for !c.done {
		if c.cur == nil {
			if !c.startRule() {
				c.done = true
				break
			}
		}
		if point, ok := c.cur.Next(selected); ok {
			c.produced = true
			return point, true
		}
		c.cur = nil
	}
	return SyncPoint{}, false
}

// startRule positions the cursor on the next rule, beginning a new pass
// when looping. It returns false when the thread is finished.
func (c *seqCursor) startRule() bool {
	if c.inPass && c.idx >= len(c.rules) {
		if !c.loop || !c.produced {
			return false
		}
		c.inPass = false
	}
	if !c.inPass {
		if c.cond != nil && !c.cond() {
			return false
		}
		if len(c.rules) == 0 {
			return false
		}
		c.idx = 0
		c.inPass = true
		c.produced = false
	}
	c.cur = c.rules[c.idx]()
	c.idx++
	return true
}
