package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/ir"
)

func sampleResult() *Result {
	r := NewResult()
	r.AddTrace(TraceEvent{Seq: 1, Event: "X", Payload: ir.IRObject{"square": ir.IRInt(0)}, Thread: "trigger(X)"})
	r.AddTrace(TraceEvent{Seq: 2, Event: "O", Payload: ir.IRObject{"square": ir.IRInt(4)}, Thread: "startAtCenter"})
	r.AddTrace(TraceEvent{Seq: 3, Event: "X", Payload: ir.IRObject{"square": ir.IRInt(1)}, Thread: "trigger(X)"})
	r.Threads = []engine.ThreadStatus{
		{Name: "enforceTurns", Priority: 0, Status: engine.Status{Pending: true}},
		{Name: "late", Priority: 1, Status: engine.Status{Running: true}},
	}
	return r
}

func TestAssertTraceEquals(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTraceEquals(r, Assertion{Events: []string{"X", "O", "X"}}))

	err := assertTraceEquals(r, Assertion{Events: []string{"X", "O"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceEquals, ae.Type)
	assert.Equal(t, "[X O]", ae.Expected)
	assert.Equal(t, "[X O X]", ae.Actual)

	assert.NoError(t, assertTraceEquals(NewResult(), Assertion{}), "nil events match an empty trace")
}

func TestAssertTraceContains(t *testing.T) {
	r := sampleResult()

	tests := []struct {
		name    string
		a       Assertion
		wantErr bool
	}{
		{"name only", Assertion{Event: "O"}, false},
		{"payload subset", Assertion{Event: "X", Payload: map[string]any{"square": 1}}, false},
		{"missing event", Assertion{Event: "win"}, true},
		{"payload mismatch", Assertion{Event: "O", Payload: map[string]any{"square": 5}}, true},
		{"payload on other event", Assertion{Event: "O", Payload: map[string]any{"square": 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(r, tt.a)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "not found in trace", ae.Actual)
		})
	}
}

func TestAssertTraceContains_ExpectedShowsPayload(t *testing.T) {
	err := assertTraceContains(sampleResult(), Assertion{Event: "O", Payload: map[string]any{"square": 5}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `O with payload {"square":5}`, ae.Expected)
}

func TestAssertTraceOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTraceOrder(r, Assertion{Events: []string{"X", "O"}}))
	assert.NoError(t, assertTraceOrder(r, Assertion{Events: []string{"O", "X"}}), "later occurrence counts")
	assert.NoError(t, assertTraceOrder(r, Assertion{Events: []string{"X", "X"}}))

	err := assertTraceOrder(r, Assertion{Events: []string{"O", "O"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no O after the preceding events")

	err = assertTraceOrder(r, Assertion{Events: []string{"win"}})
	require.Error(t, err)
}

func TestAssertTraceCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertTraceCount(r, Assertion{Event: "X", Count: 2}))
	assert.NoError(t, assertTraceCount(r, Assertion{Event: "win", Count: 0}))

	err := assertTraceCount(r, Assertion{Event: "O", Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 occurrences of O", ae.Expected)
	assert.Equal(t, "1 occurrences", ae.Actual)
}

func TestAssertThreadStatus(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertThreadStatus(r, Assertion{Thread: "enforceTurns", Status: StatusPending}))
	assert.NoError(t, assertThreadStatus(r, Assertion{Thread: "late", Status: StatusRunning}))
	assert.NoError(t, assertThreadStatus(r, Assertion{Thread: "gone", Status: StatusDone}))

	err := assertThreadStatus(r, Assertion{Thread: "enforceTurns", Status: StatusDone})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "thread enforceTurns pending", ae.Actual)
}

func TestAssertError(t *testing.T) {
	r := sampleResult()

	err := assertError(r, Assertion{})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "no error", ae.Actual)

	r.Err = `effect "hot" failed: kettle broke`
	assert.NoError(t, assertError(r, Assertion{}))
	assert.NoError(t, assertError(r, Assertion{Contains: "kettle"}))
	assert.Error(t, assertError(r, Assertion{Contains: "not in the public set"}))
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of O",
		Actual:   "1 occurrences",
		Trace:    sampleResult().Trace[:2],
	}

	want := "Assertion failed: trace_count\n" +
		"  Expected: 2 occurrences of O\n" +
		"  Actual: 1 occurrences\n" +
		"\nFull trace:\n" +
		"  [1] X {\"square\":0} (trigger(X))\n" +
		"  [2] O {\"square\":4} (startAtCenter)\n"
	assert.Equal(t, want, err.Error())
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceEquals, Events: []string{"X", "O", "X"}},
		{Type: AssertTraceCount, Event: "O", Count: 1},
		{Type: AssertTraceContains, Event: "win"},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_contains")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
