package ir

import "fmt"

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a program against structural rules.
// Returns all errors, not only the first.
func (p *ProgramSpec) Validate() []ValidationError {
	var errs []ValidationError

	if p.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "program name is required"})
	}

	seenPublic := make(map[string]bool)
	for i, name := range p.Public {
		field := fmt.Sprintf("public[%d]", i)
		if name == "" {
			errs = append(errs, ValidationError{Field: field, Message: "event name must not be empty"})
		}
		if seenPublic[name] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate public event %q", name)})
		}
		seenPublic[name] = true
	}

	seen := make(map[string]bool)
	for i, t := range p.Threads {
		field := fmt.Sprintf("threads[%d]", i)
		if t.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "thread name is required"})
		} else if seen[t.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate thread %q", t.Name)})
		}
		seen[t.Name] = true
		errs = append(errs, t.validate(field)...)
	}

	return errs
}

func (t *ThreadSpec) validate(field string) []ValidationError {
	var errs []ValidationError

	if len(t.Steps) == 0 {
		errs = append(errs, ValidationError{Field: field + ".steps", Message: "at least one step is required"})
	}
	if t.Repeat < 0 {
		errs = append(errs, ValidationError{Field: field + ".repeat", Message: "repeat must not be negative"})
	}
	if t.Forever && t.Repeat > 0 {
		errs = append(errs, ValidationError{Field: field + ".repeat", Message: "repeat and forever are mutually exclusive"})
	}

	for i, s := range t.Steps {
		stepField := fmt.Sprintf("%s.steps[%d]", field, i)
		if len(s.Request) == 0 && len(s.WaitFor) == 0 && len(s.Block) == 0 && len(s.Interrupt) == 0 {
			errs = append(errs, ValidationError{Field: stepField, Message: "step declares nothing"})
		}
		for j, r := range s.Request {
			if r.Name == "" {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.request[%d]", stepField, j), Message: "event name must not be empty"})
			}
		}
		errs = append(errs, validateMatches(stepField+".wait_for", s.WaitFor)...)
		errs = append(errs, validateMatches(stepField+".block", s.Block)...)
		errs = append(errs, validateMatches(stepField+".interrupt", s.Interrupt)...)
	}

	return errs
}

func validateMatches(field string, ms []MatchSpec) []ValidationError {
	var errs []ValidationError
	for i, m := range ms {
		if m.Name == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "event name must not be empty"})
		}
	}
	return errs
}
