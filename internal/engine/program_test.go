package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterProgram(cleanups *[]string) ProgramDef {
	return ProgramDef{
		PublicEvents: []string{"increment"},
		Setup: func(_ context.Context, pc ProgramContext) (Handlers, error) {
			pc.Threads.Set(Thread("announce", Forever(
				Sync(WaitFor("increment")),
				Sync(Request(Event{Name: "changed"})),
			)))
			pc.OnDisconnect(func() { *cleanups = append(*cleanups, "first") })
			pc.OnDisconnect(func() { *cleanups = append(*cleanups, "second") })

			count := 0
			return Handlers{
				"increment": func(any) error {
					count++
					return nil
				},
				"changed": func(any) error {
					if count > 2 {
						return pc.Trigger(Event{Name: "reset"})
					}
					return nil
				},
			}, nil
		},
	}
}

func TestProgram_PublicTriggerAndHandlers(t *testing.T) {
	var cleanups []string
	factory, err := NewProgram(counterProgram(&cleanups))
	require.NoError(t, err)

	p, err := factory.Init(context.Background())
	require.NoError(t, err)

	trace := recordTrace(t, p.Engine())
	require.NoError(t, p.Trigger(Event{Name: "increment"}))
	assert.Equal(t, []string{"increment", "changed"}, *trace)

	// The raw trigger given to setup is not filtered.
	require.NoError(t, p.Trigger(Event{Name: "increment"}))
	require.NoError(t, p.Trigger(Event{Name: "increment"}))
	assert.Equal(t, "reset", (*trace)[len(*trace)-1])

	err = p.Trigger(Event{Name: "reset"})
	assert.True(t, IsNotPublicError(err))
}

func TestProgram_InstancesAreIndependent(t *testing.T) {
	var cleanups []string
	factory, err := NewProgram(counterProgram(&cleanups))
	require.NoError(t, err)

	a, err := factory.Init(context.Background())
	require.NoError(t, err)
	b, err := factory.Init(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Trigger(Event{Name: "increment"}))
	assert.Equal(t, int64(2), a.Engine().Seq())
	assert.Equal(t, int64(0), b.Engine().Seq())
}

func TestProgram_DisconnectRunsCleanupsOnce(t *testing.T) {
	var cleanups []string
	factory, err := NewProgram(counterProgram(&cleanups))
	require.NoError(t, err)
	p, err := factory.Init(context.Background())
	require.NoError(t, err)

	p.Disconnect()
	p.Disconnect()
	assert.Equal(t, []string{"second", "first"}, cleanups)

	// Handlers were disconnected too: increment no longer counts, so
	// changed never triggers reset.
	trace := recordTrace(t, p.Engine())
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Trigger(Event{Name: "increment"}))
	}
	assert.NotContains(t, *trace, "reset")
}

func TestProgram_SetupError(t *testing.T) {
	cleaned := false
	factory, err := NewProgram(ProgramDef{
		Setup: func(_ context.Context, pc ProgramContext) (Handlers, error) {
			pc.OnDisconnect(func() { cleaned = true })
			return nil, errors.New("no database")
		},
	})
	require.NoError(t, err)

	_, err = factory.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program setup: no database")
	assert.True(t, cleaned, "cleanups registered before the failure still run")
}

func TestNewProgram_RequiresSetup(t *testing.T) {
	_, err := NewProgram(ProgramDef{})
	assert.ErrorIs(t, err, ErrNoSetup)
}
