package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaited/behavioral/internal/ir"
)

func req(names ...string) ir.StepSpec {
	var s ir.StepSpec
	for _, n := range names {
		s.Request = append(s.Request, ir.EventSpec{Name: n})
	}
	return s
}

func wait(names ...string) ir.StepSpec {
	var s ir.StepSpec
	for _, n := range names {
		s.WaitFor = append(s.WaitFor, ir.MatchSpec{Name: n})
	}
	return s
}

func TestAnalyze_NoThreads(t *testing.T) {
	assert.Empty(t, Analyze(&ir.ProgramSpec{Name: "p"}))
}

func TestAnalyze_Chain(t *testing.T) {
	spec := &ir.ProgramSpec{Name: "p", Public: []string{"start"}, Threads: []ir.ThreadSpec{
		{Name: "a", Steps: []ir.StepSpec{wait("start"), req("one"), req("two")}},
	}}
	assert.Empty(t, Analyze(spec), "a finite chain is not a cycle")
}

func TestAnalyze_ForeverSelfLoop(t *testing.T) {
	spec := &ir.ProgramSpec{Name: "p", Threads: []ir.ThreadSpec{
		{Name: "spin", Forever: true, Steps: []ir.StepSpec{req("tick")}},
	}}

	warnings := Analyze(spec)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"tick", "tick"}, warnings[0].Path)
	assert.Equal(t, LevelWarning, warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Unbounded request cycle")
}

func TestAnalyze_BoundedCycleIsInfo(t *testing.T) {
	spec := &ir.ProgramSpec{Name: "p", Threads: []ir.ThreadSpec{
		{Name: "pingpong", Repeat: 3, Steps: []ir.StepSpec{req("ping"), req("pong")}},
	}}

	warnings := Analyze(spec)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"ping", "pong", "ping"}, warnings[0].Path)
	assert.Equal(t, LevelInfo, warnings[0].Level)
}

func TestAnalyze_CycleAcrossThreads(t *testing.T) {
	spec := &ir.ProgramSpec{Name: "p", Public: []string{"a"}, Threads: []ir.ThreadSpec{
		{Name: "ab", Forever: true, Steps: []ir.StepSpec{wait("a"), req("b")}},
		{Name: "ba", Forever: true, Steps: []ir.StepSpec{wait("b"), req("a")}},
	}}

	warnings := Analyze(spec)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, LevelWarning, warnings[0].Level)
}

func TestAnalyze_UnsatisfiedWait(t *testing.T) {
	spec := &ir.ProgramSpec{Name: "p", Public: []string{"start"}, Threads: []ir.ThreadSpec{
		{Name: "w", Steps: []ir.StepSpec{wait("start"), wait("never"), wait("never")}},
	}}

	warnings := Analyze(spec)
	require.Len(t, warnings, 1)
	assert.Equal(t, "w", warnings[0].Thread)
	assert.Contains(t, warnings[0].Message, `"never"`)
}
