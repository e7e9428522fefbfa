package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)

	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Check("start"), "step %d should be allowed", i+1)
	}

	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check("start"))
	}

	err := q.Check("start")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "start", stepsErr.Trigger)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
	assert.Contains(t, err.Error(), `"start"`)
}

func TestQuotaEnforcer_Reset(t *testing.T) {
	q := NewQuotaEnforcer(2)
	q.Check("a")
	q.Check("a")
	q.Reset()

	assert.Equal(t, 0, q.Current())
	assert.NoError(t, q.Check("a"))
}

func TestQuotaEnforcer_ZeroDisablesLimit(t *testing.T) {
	q := NewQuotaEnforcer(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Check("a"))
	}
}

func TestIsStepsExceededError(t *testing.T) {
	err := &StepsExceededError{Trigger: "x", Steps: 3, Limit: 2}

	assert.True(t, IsStepsExceededError(err))
	assert.True(t, IsStepsExceededError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsStepsExceededError(fmt.Errorf("other")))
	assert.False(t, IsStepsExceededError(nil))
}

// A thread that requests the same event forever never reaches quiescence.
// The engine must stop it with a StepsExceededError instead of hanging.
func TestEngine_MaxStepsStopsLivelock(t *testing.T) {
	e := New(WithMaxSteps(25))
	e.Threads().Set(
		Thread("spin", Sequence(
			Sync(WaitFor("start")),
			Forever(Sync(Request(Event{Name: "tick"}))),
		)),
	)

	ticks := 0
	e.RegisterEffects(Handlers{
		"tick": func(any) error {
			ticks++
			return nil
		},
	})

	err := e.Trigger(Event{Name: "start"})
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	// start plus 24 ticks fit in the quota.
	assert.Equal(t, 24, ticks)

	// The engine stays usable and the thread keeps its position.
	assert.Equal(t, Status{Pending: true}, e.Threads().Has("spin"))
}

// The quota counts selections per super-step, not per engine.
func TestEngine_QuotaResetsEachSuperStep(t *testing.T) {
	e := New(WithMaxSteps(3))
	e.Threads().Set(Thread("pair", Forever(
		Sync(WaitFor("go")),
		Sync(Request(Event{Name: "a"})),
		Sync(Request(Event{Name: "b"})),
	)))

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Trigger(Event{Name: "go"}), "trigger %d", i+1)
	}
	assert.Equal(t, int64(15), e.Seq())
}
