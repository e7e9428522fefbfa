package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/plaited/behavioral/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Event)
			if ev.Payload != nil {
				if data, err := ir.MarshalIRValue(ev.Payload); err == nil {
					fmt.Fprintf(&buf, " %s", data)
				}
			}
			fmt.Fprintf(&buf, " (%s)\n", ev.Thread)
		}
	}

	return buf.String()
}

// assertTraceEquals checks the selected names against the full expected
// sequence.
func assertTraceEquals(result *Result, assertion Assertion) error {
	got := result.Names()
	want := assertion.Events
	if want == nil {
		want = []string{}
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceEquals,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

// assertTraceContains checks that some selection matches the event name
// and contains the expected payload fields.
func assertTraceContains(result *Result, assertion Assertion) error {
	var want ir.IRObject
	if len(assertion.Payload) > 0 {
		obj, err := convertPayload(assertion.Payload)
		if err != nil {
			return fmt.Errorf("trace_contains %s: %w", assertion.Event, err)
		}
		want = obj
	}

	for _, ev := range result.Trace {
		if ev.Event != assertion.Event {
			continue
		}
		if len(want) == 0 {
			return nil
		}
		if got, ok := ev.Payload.(ir.IRObject); ok && got.Contains(want) {
			return nil
		}
	}

	expected := assertion.Event
	if len(want) > 0 {
		data, _ := ir.MarshalIRValue(want)
		expected = fmt.Sprintf("%s with payload %s", assertion.Event, data)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertTraceOrder checks that events appear in the specified order.
// Events don't need to be consecutive. Each expected event must occur
// after the occurrence matched for the previous one.
func assertTraceOrder(result *Result, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Events {
		found := false
		for pos < len(result.Trace) {
			ev := result.Trace[pos]
			pos++
			if ev.Event == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   fmt.Sprintf("no %s after the preceding events", want),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the event was selected exactly Count times.
func assertTraceCount(result *Result, assertion Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		if ev.Event == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertThreadStatus checks the final status of a thread.
func assertThreadStatus(result *Result, assertion Assertion) error {
	s := result.ThreadStatus(assertion.Thread)
	actual := StatusDone
	switch {
	case s.Running:
		actual = StatusRunning
	case s.Pending:
		actual = StatusPending
	}

	if actual != assertion.Status {
		return &AssertionError{
			Type:     AssertThreadStatus,
			Expected: fmt.Sprintf("thread %s %s", assertion.Thread, assertion.Status),
			Actual:   fmt.Sprintf("thread %s %s", assertion.Thread, actual),
		}
	}
	return nil
}

// assertError checks that the run stopped with a matching error.
func assertError(result *Result, assertion Assertion) error {
	if result.Err != "" && strings.Contains(result.Err, assertion.Contains) {
		return nil
	}

	expected := "an error"
	if assertion.Contains != "" {
		expected = fmt.Sprintf("an error containing %q", assertion.Contains)
	}
	actual := "no error"
	if result.Err != "" {
		actual = result.Err
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: expected,
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceEquals:
			err = assertTraceEquals(result, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		case AssertThreadStatus:
			err = assertThreadStatus(result, assertion)
		case AssertError:
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
