package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaited/behavioral/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestReplay_ReproducesRecordedRuns(t *testing.T) {
	for _, name := range []string{"hotcold", "hotcold_effects", "hotcold_failure", "tictactoe_x_wins", "tictactoe_rules"} {
		t.Run(name, func(t *testing.T) {
			st := openStore(t)
			s := loadScenario(t, name)
			s.RunID = "run-" + name

			_, err := Run(context.Background(), s, WithStore(st))
			require.NoError(t, err)

			got, err := Replay(context.Background(), st, s.RunID)
			require.NoError(t, err)
			assert.True(t, got.Deterministic, "reason: %s", got.Reason)
			assert.Nil(t, got.Divergence)
			assert.Equal(t, got.Recorded, got.Replayed)
		})
	}
}

func TestReplay_SeededChaos(t *testing.T) {
	st := openStore(t)
	s := loadScenario(t, "tictactoe_x_wins")
	s.Strategy = "chaos"
	s.Seed = 99
	s.Assertions = []Assertion{{Type: AssertTraceOrder, Events: []string{"X"}}}
	s.RunID = "chaos"

	result, err := Run(context.Background(), s, WithStore(st))
	require.NoError(t, err)

	got, err := Replay(context.Background(), st, "chaos")
	require.NoError(t, err)
	assert.True(t, got.Deterministic, "reason: %s", got.Reason)
	assert.Equal(t, "chaos", got.Strategy)
	assert.Equal(t, uint64(99), got.Seed)
	assert.Equal(t, len(result.Trace), got.Replayed)
}

func TestReplay_DetectsTamperedSelection(t *testing.T) {
	st := openStore(t)
	s := loadScenario(t, "hotcold")
	s.RunID = "tampered"

	_, err := Run(context.Background(), s, WithStore(st))
	require.NoError(t, err)

	_, err = st.DB().Exec(`UPDATE selections SET event = 'cold' WHERE run_id = 'tampered' AND seq = 2`)
	require.NoError(t, err)

	got, err := Replay(context.Background(), st, "tampered")
	require.NoError(t, err)
	assert.False(t, got.Deterministic)
	require.NotNil(t, got.Divergence)
	assert.Equal(t, 1, got.Divergence.Index)
	assert.Equal(t, "cold", got.Divergence.Want)
	assert.Equal(t, "hot", got.Divergence.Got)
	assert.Contains(t, got.Reason, "replay diverged at selection 1")
}

func TestReplay_ProgramChanged(t *testing.T) {
	st := openStore(t)
	s := pingScenario(t)
	s.RunID = "ping-run"

	_, err := Run(context.Background(), s, WithStore(st))
	require.NoError(t, err)

	changed := `package p

program: ping: {
	public: ["ping"]
	threads: [{name: "reply", steps: [{wait_for: "ping"}, {request: "pang"}]}]
}
`
	require.NoError(t, os.WriteFile(s.Program, []byte(changed), 0644))

	got, err := Replay(context.Background(), st, "ping-run")
	require.NoError(t, err)
	assert.False(t, got.Deterministic)
	assert.Nil(t, got.Divergence)
	assert.Contains(t, got.Reason, "program hash changed")
}

func TestReplay_UnknownRun(t *testing.T) {
	st := openStore(t)

	_, err := Replay(context.Background(), st, "missing")
	require.ErrorIs(t, err, store.ErrRunNotFound)
}
