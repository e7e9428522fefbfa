package ir

// ProgramSpec is a compiled declarative behavioral program.
//
// Threads are listed in declaration order, which is also their priority
// order once registered with an engine.
type ProgramSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Public      []string     `json:"public,omitempty"`
	Threads     []ThreadSpec `json:"threads"`
}

// ThreadSpec is one behavioral thread: a sequence of steps, run once,
// Repeat times, or forever.
type ThreadSpec struct {
	Name    string     `json:"name"`
	Repeat  int        `json:"repeat,omitempty"`
	Forever bool       `json:"forever,omitempty"`
	Steps   []StepSpec `json:"steps"`
}

// StepSpec is one sync point of a thread.
type StepSpec struct {
	Request   []EventSpec `json:"request,omitempty"`
	WaitFor   []MatchSpec `json:"wait_for,omitempty"`
	Block     []MatchSpec `json:"block,omitempty"`
	Interrupt []MatchSpec `json:"interrupt,omitempty"`
}

// EventSpec is a requested event with an optional object payload.
type EventSpec struct {
	Name    string   `json:"name"`
	Payload IRObject `json:"payload,omitempty"`
}

// MatchSpec selects events by name and, optionally, by payload. An event
// matches when its name is equal and its payload contains every field of
// Payload.
type MatchSpec struct {
	Name    string   `json:"name"`
	Payload IRObject `json:"payload,omitempty"`
}

// Matches reports whether an event with this name and payload is selected
// by the spec. A payload that is not an IRObject only matches a spec
// without payload constraints.
func (m MatchSpec) Matches(name string, payload any) bool {
	if m.Name != name {
		return false
	}
	if len(m.Payload) == 0 {
		return true
	}
	obj, ok := payload.(IRObject)
	return ok && obj.Contains(m.Payload)
}

// ToIR converts the spec into an IRObject for canonical hashing.
func (p ProgramSpec) ToIR() IRObject {
	threads := make(IRArray, len(p.Threads))
	for i, t := range p.Threads {
		threads[i] = t.ToIR()
	}
	return IRObject{
		"name":    IRString(p.Name),
		"public":  stringsToIR(p.Public),
		"threads": threads,
	}
}

// ToIR converts the thread spec into an IRObject.
func (t ThreadSpec) ToIR() IRObject {
	steps := make(IRArray, len(t.Steps))
	for i, s := range t.Steps {
		steps[i] = IRObject{
			"request":   eventsToIR(s.Request),
			"wait_for":  matchesToIR(s.WaitFor),
			"block":     matchesToIR(s.Block),
			"interrupt": matchesToIR(s.Interrupt),
		}
	}
	return IRObject{
		"name":    IRString(t.Name),
		"repeat":  IRInt(t.Repeat),
		"forever": IRBool(t.Forever),
		"steps":   steps,
	}
}

func stringsToIR(ss []string) IRArray {
	out := make(IRArray, len(ss))
	for i, s := range ss {
		out[i] = IRString(s)
	}
	return out
}

func eventsToIR(events []EventSpec) IRArray {
	out := make(IRArray, len(events))
	for i, e := range events {
		out[i] = IRObject{"name": IRString(e.Name), "payload": payloadOrEmpty(e.Payload)}
	}
	return out
}

func matchesToIR(matches []MatchSpec) IRArray {
	out := make(IRArray, len(matches))
	for i, m := range matches {
		out[i] = IRObject{"name": IRString(m.Name), "payload": payloadOrEmpty(m.Payload)}
	}
	return out
}

func payloadOrEmpty(p IRObject) IRObject {
	if p == nil {
		return IRObject{}
	}
	return p
}
