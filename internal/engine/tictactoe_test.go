package engine

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type square struct {
	Index int
}

type winner struct {
	Player  string
	Squares []int
}

var winConditions = [][]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func squareOf(e Event) (int, bool) {
	s, ok := e.Payload.(square)
	return s.Index, ok
}

func move(player string, index int) Event {
	return Event{Name: player, Payload: square{Index: index}}
}

// board tracks free squares through X and O effects.
type board struct {
	free   map[int]bool
	winner *winner
}

func newBoard(e *Engine) *board {
	b := &board{free: map[int]bool{}}
	for i := 0; i < 9; i++ {
		b.free[i] = true
	}
	take := func(p any) error {
		delete(b.free, p.(square).Index)
		return nil
	}
	e.RegisterEffects(Handlers{
		"X": take,
		"O": take,
		"win": func(p any) error {
			w := p.(winner)
			b.winner = &w
			return nil
		},
	})
	return b
}

func enforceTurns() Named {
	return Thread("enforceTurns", Forever(
		Sync(SyncPoint{WaitFor: Names("X"), Block: Names("O")}),
		Sync(SyncPoint{WaitFor: Names("O"), Block: Names("X")}),
	))
}

func squaresTaken() []Named {
	var out []Named
	for i := 0; i < 9; i++ {
		onSquare := func(e Event) bool {
			n, ok := squareOf(e)
			return ok && n == i
		}
		out = append(out, Thread(fmt.Sprintf("(%d) taken", i), Sequence(
			Sync(SyncPoint{WaitFor: When(onSquare)}),
			Sync(SyncPoint{Block: When(onSquare)}),
		)))
	}
	return out
}

func detectWins(player string) []Named {
	var out []Named
	for _, line := range winConditions {
		onLine := When(func(e Event) bool {
			n, ok := squareOf(e)
			return ok && e.Name == player && slices.Contains(line, n)
		})
		out = append(out, Thread(fmt.Sprintf("%sWins %v", player, line), Sequence(
			Sync(SyncPoint{WaitFor: onLine}),
			Sync(SyncPoint{WaitFor: onLine}),
			Sync(SyncPoint{WaitFor: onLine}),
			Sync(Request(Event{Name: "win", Payload: winner{Player: player, Squares: line}})),
		)))
	}
	return out
}

func stopGame() Named {
	return Thread("stopGame", Sequence(
		Sync(WaitFor("win")),
		Sync(SyncPoint{Block: Names("X", "O")}),
	))
}

func defaultMoves() []Named {
	var out []Named
	for i := 0; i < 9; i++ {
		out = append(out, Thread(fmt.Sprintf("defaultMoves(%d)", i),
			Forever(Sync(Request(move("O", i))))))
	}
	return out
}

func startAtCenter() Named {
	return Thread("startAtCenter", Sync(Request(move("O", 4))))
}

// preventLineWithTwoXs requests an O on the first free square of any line
// where X already holds two squares. The square is chosen when the
// candidates are computed, not when the thread parks.
func preventLineWithTwoXs(b *board) []Named {
	var out []Named
	for _, line := range winConditions {
		xOnLine := When(func(e Event) bool {
			n, ok := squareOf(e)
			return ok && e.Name == "X" && slices.Contains(line, n)
		})
		out = append(out, Thread(fmt.Sprintf("StopXWin %v", line), Sequence(
			Sync(SyncPoint{WaitFor: xOnLine}),
			Sync(SyncPoint{WaitFor: xOnLine}),
			Sync(SyncPoint{RequestFunc: func() Event {
				for _, n := range line {
					if b.free[n] {
						return move("O", n)
					}
				}
				return Event{}
			}}),
		)))
	}
	return out
}

func TestTicTacToe_TakingASquare(t *testing.T) {
	e := New()
	b := newBoard(e)

	require.NoError(t, e.Trigger(move("X", 1)))
	assert.False(t, b.free[1])
	require.NoError(t, e.Trigger(move("O", 0)))
	assert.False(t, b.free[0])
}

func TestTicTacToe_TakeTurns(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())

	require.NoError(t, e.Trigger(move("X", 1)))
	require.NoError(t, e.Trigger(move("O", 0)))
	assert.False(t, b.free[1])
	assert.False(t, b.free[0])

	// O tries to play twice in a row.
	require.NoError(t, e.Trigger(move("O", 2)))
	assert.True(t, b.free[2])
}

func TestTicTacToe_SquaresTaken(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())
	e.Threads().Set(squaresTaken()...)

	require.NoError(t, e.Trigger(move("X", 1)))
	require.NoError(t, e.Trigger(move("O", 0)))

	// X retakes 1: blocked, so it is still X's turn.
	require.NoError(t, e.Trigger(move("X", 1)))
	require.NoError(t, e.Trigger(move("O", 2)))
	assert.True(t, b.free[2])

	require.NoError(t, e.Trigger(move("X", 2)))
	assert.False(t, b.free[2])
}

func TestTicTacToe_DetectWinner(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())
	e.Threads().Set(squaresTaken()...)
	e.Threads().Set(detectWins("X")...)
	e.Threads().Set(detectWins("O")...)

	for _, m := range []Event{move("X", 0), move("O", 3), move("X", 1), move("O", 4), move("X", 2)} {
		require.NoError(t, e.Trigger(m))
	}

	require.NotNil(t, b.winner)
	assert.Equal(t, winner{Player: "X", Squares: []int{0, 1, 2}}, *b.winner)
}

func TestTicTacToe_StopGame(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())
	e.Threads().Set(squaresTaken()...)
	e.Threads().Set(detectWins("X")...)
	e.Threads().Set(detectWins("O")...)
	e.Threads().Set(stopGame())

	for _, m := range []Event{move("X", 0), move("O", 3), move("X", 1), move("O", 4), move("X", 2)} {
		require.NoError(t, e.Trigger(m))
	}
	require.NotNil(t, b.winner)

	require.NoError(t, e.Trigger(move("O", 5)))
	assert.True(t, b.free[5], "no moves after a win")
}

func TestTicTacToe_DefaultMoves(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())
	e.Threads().Set(squaresTaken()...)
	e.Threads().Set(detectWins("X")...)
	e.Threads().Set(detectWins("O")...)
	e.Threads().Set(stopGame())
	e.Threads().Set(defaultMoves()...)

	require.NoError(t, e.Trigger(move("X", 0)))
	assert.False(t, b.free[1], "O answers on the first free square")
}

func TestTicTacToe_StartAtCenter(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())
	e.Threads().Set(squaresTaken()...)
	e.Threads().Set(detectWins("X")...)
	e.Threads().Set(detectWins("O")...)
	e.Threads().Set(stopGame(), startAtCenter())
	e.Threads().Set(defaultMoves()...)

	require.NoError(t, e.Trigger(move("X", 0)))
	assert.False(t, b.free[4])
	assert.True(t, b.free[1])
}

func TestTicTacToe_PreventCompletionOfLineWithTwoXs(t *testing.T) {
	e := New()
	b := newBoard(e)
	e.Threads().Set(enforceTurns())
	e.Threads().Set(squaresTaken()...)
	e.Threads().Set(detectWins("X")...)
	e.Threads().Set(detectWins("O")...)
	e.Threads().Set(stopGame())
	e.Threads().Set(preventLineWithTwoXs(b)...)
	e.Threads().Set(startAtCenter())
	e.Threads().Set(defaultMoves()...)

	require.NoError(t, e.Trigger(move("X", 2)))
	require.NoError(t, e.Trigger(move("X", 6)))
	require.NoError(t, e.Trigger(move("X", 8)))
	assert.False(t, b.free[7], "O blocks X from completing 6-7-8")

	require.NoError(t, e.Trigger(move("X", 5)))
	require.NotNil(t, b.winner)
	assert.Equal(t, winner{Player: "X", Squares: []int{2, 5, 8}}, *b.winner)
}
