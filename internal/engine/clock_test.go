package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StartsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())
}

func TestClock_NextIncrements(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current must not advance the clock")
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		require.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestClock_StampsEverySelection(t *testing.T) {
	e := New()
	e.Threads().Set(
		Thread("chain", Sequence(
			Sync(WaitFor("go")),
			Sync(Request(Event{Name: "a"})),
			Sync(Request(Event{Name: "b"})),
		)),
	)

	var seqs []int64
	require.NoError(t, e.UseSnapshot(func(m Message) {
		if s, ok := m.(SelectionSnapshot); ok {
			seqs = append(seqs, s.Seq)
		}
	}))

	require.NoError(t, e.Trigger(Event{Name: "go"}))
	assert.Equal(t, []int64{1, 2, 3}, seqs)
	assert.Equal(t, int64(3), e.Seq())
}
