package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/plaited/behavioral/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrStructure          = "E100" // structural rule from ir.ProgramSpec.Validate
	ErrRequestBlocked     = "E101" // a step requests an event it also blocks
	ErrNullPayload        = "E102" // null inside a payload
	ErrInvalidEventName   = "E103" // event name contains whitespace
	ErrReservedThreadName = "E104" // thread name collides with trigger pseudo-threads
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var eventNamePattern = regexp.MustCompile(`^\S+$`)

// Validate checks a compiled program. It returns all errors found (does
// not fail-fast).
func Validate(spec *ir.ProgramSpec) []ValidationError {
	var errs []ValidationError

	for _, e := range spec.Validate() {
		errs = append(errs, ValidationError{Field: e.Field, Message: e.Message, Code: ErrStructure})
	}

	for i, name := range spec.Public {
		errs = append(errs, validateEventName(name, fmt.Sprintf("public[%d]", i))...)
	}

	for i, t := range spec.Threads {
		field := fmt.Sprintf("threads[%d]", i)
		if strings.HasPrefix(t.Name, "trigger(") {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("thread name %q is reserved for triggered events", t.Name),
				Code:    ErrReservedThreadName,
			})
		}
		for j, s := range t.Steps {
			errs = append(errs, validateStep(s, fmt.Sprintf("%s.steps[%d]", field, j))...)
		}
	}

	return errs
}

func validateStep(s ir.StepSpec, field string) []ValidationError {
	var errs []ValidationError

	for i, r := range s.Request {
		f := fmt.Sprintf("%s.request[%d]", field, i)
		errs = append(errs, validateEventName(r.Name, f)...)
		errs = append(errs, validatePayload(r.Payload, f+".payload")...)

		for _, b := range s.Block {
			if b.Matches(r.Name, r.Payload) {
				errs = append(errs, ValidationError{
					Field:   f,
					Message: fmt.Sprintf("event %q is requested and blocked by the same step", r.Name),
					Code:    ErrRequestBlocked,
				})
				break
			}
		}
	}

	errs = append(errs, validateMatchSpecs(s.WaitFor, field+".wait_for")...)
	errs = append(errs, validateMatchSpecs(s.Block, field+".block")...)
	errs = append(errs, validateMatchSpecs(s.Interrupt, field+".interrupt")...)

	return errs
}

func validateMatchSpecs(ms []ir.MatchSpec, field string) []ValidationError {
	var errs []ValidationError
	for i, m := range ms {
		f := fmt.Sprintf("%s[%d]", field, i)
		errs = append(errs, validateEventName(m.Name, f)...)
		errs = append(errs, validatePayload(m.Payload, f+".payload")...)
	}
	return errs
}

// validateEventName ignores empty names; the structural check reports them.
func validateEventName(name, field string) []ValidationError {
	if name == "" || eventNamePattern.MatchString(name) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("event name %q must not contain whitespace", name),
		Code:    ErrInvalidEventName,
	}}
}

func validatePayload(p ir.IRObject, field string) []ValidationError {
	var errs []ValidationError
	for _, k := range p.SortedKeys() {
		errs = append(errs, validateValue(p[k], field+"."+k)...)
	}
	return errs
}

func validateValue(v ir.IRValue, field string) []ValidationError {
	switch val := v.(type) {
	case ir.IRNull, nil:
		return []ValidationError{{
			Field:   field,
			Message: "null is forbidden in payloads",
			Code:    ErrNullPayload,
		}}
	case ir.IRArray:
		var errs []ValidationError
		for i, elem := range val {
			errs = append(errs, validateValue(elem, fmt.Sprintf("%s[%d]", field, i))...)
		}
		return errs
	case ir.IRObject:
		return validatePayload(val, field)
	default:
		return nil
	}
}
