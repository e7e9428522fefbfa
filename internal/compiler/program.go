package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/plaited/behavioral/internal/ir"
)

// CompileProgram parses a CUE value into a ProgramSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: hotCold: { threads: [...] }`)
//	spec, err := CompileProgram(v.LookupPath(cue.ParsePath("program.hotCold")))
//
// Threads are a list, not a struct, because their order is their priority.
func CompileProgram(v cue.Value) (*ir.ProgramSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ProgramSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = unquote(labels[len(labels)-1].String())
	}

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Description = desc
	}

	if pubVal := v.LookupPath(cue.ParsePath("public")); pubVal.Exists() {
		public, err := parseNames(pubVal, "public")
		if err != nil {
			return nil, err
		}
		spec.Public = public
	}

	threadsVal := v.LookupPath(cue.ParsePath("threads"))
	if !threadsVal.Exists() {
		return nil, &CompileError{
			Field:   "threads",
			Message: "threads are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := threadsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "threads",
			Message: "threads must be a list; declaration order is priority",
			Pos:     threadsVal.Pos(),
		}
	}
	for i := 0; iter.Next(); i++ {
		thread, err := parseThread(iter.Value(), fmt.Sprintf("threads[%d]", i))
		if err != nil {
			return nil, err
		}
		spec.Threads = append(spec.Threads, thread)
	}
	if len(spec.Threads) == 0 {
		return nil, &CompileError{
			Field:   "threads",
			Message: "at least one thread is required",
			Pos:     threadsVal.Pos(),
		}
	}

	return spec, nil
}

func parseThread(v cue.Value, field string) (ir.ThreadSpec, error) {
	var thread ir.ThreadSpec

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return thread, &CompileError{Field: field + ".name", Message: "thread name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return thread, formatCUEError(err)
	}
	thread.Name = name

	if repeatVal := v.LookupPath(cue.ParsePath("repeat")); repeatVal.Exists() {
		n, err := repeatVal.Int64()
		if err != nil {
			return thread, &CompileError{Field: field + ".repeat", Message: "repeat must be an int", Pos: repeatVal.Pos()}
		}
		thread.Repeat = int(n)
	}

	if foreverVal := v.LookupPath(cue.ParsePath("forever")); foreverVal.Exists() {
		forever, err := foreverVal.Bool()
		if err != nil {
			return thread, &CompileError{Field: field + ".forever", Message: "forever must be a bool", Pos: foreverVal.Pos()}
		}
		thread.Forever = forever
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return thread, &CompileError{Field: field + ".steps", Message: "steps are required", Pos: v.Pos()}
	}
	iter, err := stepsVal.List()
	if err != nil {
		return thread, &CompileError{Field: field + ".steps", Message: "steps must be a list", Pos: stepsVal.Pos()}
	}
	for i := 0; iter.Next(); i++ {
		step, err := parseStep(iter.Value(), fmt.Sprintf("%s.steps[%d]", field, i))
		if err != nil {
			return thread, err
		}
		thread.Steps = append(thread.Steps, step)
	}

	return thread, nil
}

func parseStep(v cue.Value, field string) (ir.StepSpec, error) {
	var step ir.StepSpec

	if _, err := v.Fields(); err != nil {
		return step, &CompileError{Field: field, Message: "step must be a struct", Pos: v.Pos()}
	}

	var err error
	if step.Request, err = parseEvents(v, "request", field); err != nil {
		return step, err
	}
	if step.WaitFor, err = parseMatches(v, "wait_for", field); err != nil {
		return step, err
	}
	if step.Block, err = parseMatches(v, "block", field); err != nil {
		return step, err
	}
	if step.Interrupt, err = parseMatches(v, "interrupt", field); err != nil {
		return step, err
	}
	return step, nil
}

// parseEvents reads an idiom that may be written as:
//   - a single name: "hot"
//   - a single object: { name: "O", payload: { square: 4 } }
//   - a list of names or objects
func parseEvents(v cue.Value, idiom, field string) ([]ir.EventSpec, error) {
	refs, err := parseRefs(v, idiom, field)
	if err != nil {
		return nil, err
	}
	var out []ir.EventSpec
	for _, r := range refs {
		out = append(out, ir.EventSpec{Name: r.name, Payload: r.payload})
	}
	return out, nil
}

func parseMatches(v cue.Value, idiom, field string) ([]ir.MatchSpec, error) {
	refs, err := parseRefs(v, idiom, field)
	if err != nil {
		return nil, err
	}
	var out []ir.MatchSpec
	for _, r := range refs {
		out = append(out, ir.MatchSpec{Name: r.name, Payload: r.payload})
	}
	return out, nil
}

type eventRef struct {
	name    string
	payload ir.IRObject
}

func parseRefs(v cue.Value, idiom, field string) ([]eventRef, error) {
	val := v.LookupPath(cue.ParsePath(idiom))
	if !val.Exists() {
		return nil, nil
	}
	field = field + "." + idiom

	if val.IncompleteKind() == cue.ListKind {
		iter, err := val.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var refs []eventRef
		for i := 0; iter.Next(); i++ {
			r, err := parseRef(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			refs = append(refs, r)
		}
		return refs, nil
	}

	r, err := parseRef(val, field)
	if err != nil {
		return nil, err
	}
	return []eventRef{r}, nil
}

func parseRef(v cue.Value, field string) (eventRef, error) {
	if name, err := v.String(); err == nil {
		return eventRef{name: name}, nil
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return eventRef{}, &CompileError{
			Field:   field,
			Message: "must be an event name or an object with a name field",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return eventRef{}, formatCUEError(err)
	}

	ref := eventRef{name: name}
	if payloadVal := v.LookupPath(cue.ParsePath("payload")); payloadVal.Exists() {
		p, err := valueToIR(payloadVal, field+".payload")
		if err != nil {
			return eventRef{}, err
		}
		obj, ok := p.(ir.IRObject)
		if !ok {
			return eventRef{}, &CompileError{Field: field + ".payload", Message: "payload must be an object", Pos: payloadVal.Pos()}
		}
		ref.payload = obj
	}
	return ref, nil
}

func parseNames(v cue.Value, field string) ([]string, error) {
	if name, err := v.String(); err == nil {
		return []string{name}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a name or a list of names", Pos: v.Pos()}
	}
	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		names = append(names, name)
	}
	return names, nil
}

// valueToIR converts a concrete CUE value into an IRValue.
// Floats and null are forbidden, as in canonical JSON.
func valueToIR(v cue.Value, field string) (ir.IRValue, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "integer out of int64 range", Pos: v.Pos()}
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := valueToIR(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			label := iter.Label()
			elem, err := valueToIR(iter.Value(), field+"."+label)
			if err != nil {
				return nil, err
			}
			obj[label] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "floats are forbidden in payloads - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported payload kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func unquote(label string) string {
	if len(label) >= 2 && label[0] == '"' && label[len(label)-1] == '"' {
		return label[1 : len(label)-1]
	}
	return label
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Only the first error carries a usable position.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
