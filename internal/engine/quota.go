package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default number of selections allowed in one
// super-step.
const DefaultMaxSteps = 10000

// QuotaEnforcer counts selections within a super-step and enforces a
// maximum. An engine owns one and resets it when a super-step starts.
//
// Behavioral programs built from Forever loops can request events without
// end. The quota turns such a livelock into a StepsExceededError instead of
// a hung Trigger call. A limit of zero or less disables the check.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
// trigger names the event that started the super-step.
func (q *QuotaEnforcer) Check(trigger string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			Trigger: trigger,
			Steps:   q.current,
			Limit:   q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0 at the start of a super-step.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned by Trigger when a super-step selects more
// events than the configured limit. The super-step is abandoned and the
// trigger queue is cleared; threads keep the state they had reached.
type StepsExceededError struct {
	Trigger string
	Steps   int
	Limit   int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("super-step for %q exceeded max steps: %d steps > %d limit",
		e.Trigger, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
