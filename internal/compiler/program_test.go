package compiler

import (
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaited/behavioral/internal/ir"
)

func compileString(t *testing.T, src, path string) (*ir.ProgramSpec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileProgram(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileProgramBasic(t *testing.T) {
	spec, err := compileString(t, `
		program: hotCold: {
			description: "alternation"
			public: ["start"]
			threads: [
				{name: "addHot", repeat: 3, steps: [{request: "hot"}]},
				{name: "mix", forever: true, steps: [
					{wait_for: "hot", block: "cold"},
					{wait_for: "cold", block: "hot"},
				]},
			]
		}
	`, "program.hotCold")
	require.NoError(t, err)

	assert.Equal(t, "hotCold", spec.Name)
	assert.Equal(t, "alternation", spec.Description)
	assert.Equal(t, []string{"start"}, spec.Public)
	require.Len(t, spec.Threads, 2)
	assert.Equal(t, "addHot", spec.Threads[0].Name, "declaration order is kept")
	assert.Equal(t, 3, spec.Threads[0].Repeat)
	assert.True(t, spec.Threads[1].Forever)
	assert.Equal(t, ir.StepSpec{
		WaitFor: []ir.MatchSpec{{Name: "hot"}},
		Block:   []ir.MatchSpec{{Name: "cold"}},
	}, spec.Threads[1].Steps[0])
}

func TestCompileProgramEventForms(t *testing.T) {
	spec, err := compileString(t, `
		program: "tic-tac-toe": {
			public: "X"
			threads: [{
				name: "center"
				steps: [{
					request: [{name: "O", payload: {square: 4, tags: ["mid"], bot: true}}, "pass"]
					block: ["X", "Y"]
					interrupt: {name: "win", payload: {player: "X"}}
				}]
			}]
		}
	`, `program."tic-tac-toe"`)
	require.NoError(t, err)

	assert.Equal(t, "tic-tac-toe", spec.Name)
	assert.Equal(t, []string{"X"}, spec.Public)

	step := spec.Threads[0].Steps[0]
	assert.Equal(t, []ir.EventSpec{
		{Name: "O", Payload: ir.IRObject{"square": ir.IRInt(4), "tags": ir.IRArray{ir.IRString("mid")}, "bot": ir.IRBool(true)}},
		{Name: "pass"},
	}, step.Request)
	assert.Equal(t, []ir.MatchSpec{{Name: "X"}, {Name: "Y"}}, step.Block)
	assert.Equal(t, []ir.MatchSpec{{Name: "win", Payload: ir.IRObject{"player": ir.IRString("X")}}}, step.Interrupt)
	assert.Empty(t, step.WaitFor)
}

func TestCompileProgramErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing threads", `program: p: { public: ["a"] }`, "threads"},
		{"threads not a list", `program: p: { threads: { a: {} } }`, "threads"},
		{"empty threads", `program: p: { threads: [] }`, "threads"},
		{"missing thread name", `program: p: { threads: [{ steps: [] }] }`, "threads[0].name"},
		{"missing steps", `program: p: { threads: [{ name: "a" }] }`, "threads[0].steps"},
		{"step not a struct", `program: p: { threads: [{ name: "a", steps: ["x"] }] }`, "threads[0].steps[0]"},
		{"bad event", `program: p: { threads: [{ name: "a", steps: [{ request: 3 }] }] }`, "threads[0].steps[0].request"},
		{"float payload", `program: p: { threads: [{ name: "a", steps: [{ request: { name: "x", payload: { n: 1.5 } } }] }] }`, "threads[0].steps[0].request.payload.n"},
		{"payload not object", `program: p: { threads: [{ name: "a", steps: [{ request: { name: "x", payload: [1] } }] }] }`, "threads[0].steps[0].request.payload"},
		{"repeat not int", `program: p: { threads: [{ name: "a", repeat: "2", steps: [] }] }`, "threads[0].repeat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src, "program.p")
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "threads", Message: "threads are required"}
	assert.Equal(t, "threads: threads are required", err.Error())
}

func TestLoadProgramFile(t *testing.T) {
	spec, err := LoadProgram(filepath.Join("testdata", "programs", "hotcold.cue"), "")
	require.NoError(t, err)

	assert.Equal(t, "hotCold", spec.Name)
	require.Len(t, spec.Threads, 3)
	assert.Equal(t, []string{"addHot", "addCold", "mixHotCold"},
		[]string{spec.Threads[0].Name, spec.Threads[1].Name, spec.Threads[2].Name})
}

func TestLoadProgramDirectory(t *testing.T) {
	dir := filepath.Join("testdata", "programs")

	spec, err := LoadProgram(dir, "ticker")
	require.NoError(t, err)
	assert.Equal(t, "ticker", spec.Name)

	_, err = LoadProgram(dir, "")
	assert.ErrorContains(t, err, "declares 2 programs")

	_, err = LoadProgram(filepath.Join("testdata", "missing.cue"), "")
	assert.Error(t, err)
}

func TestProgramsCollectsAllErrors(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		program: good: { threads: [{ name: "a", steps: [{ request: "x" }] }] }
		program: bad1: { threads: [] }
		program: bad2: { public: ["x"] }
	`)
	require.NoError(t, v.Err())

	specs, errs := Programs(v)
	require.Len(t, specs, 1)
	assert.Equal(t, "good", specs[0].Name)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "program.bad1")
	assert.Contains(t, errs[1].Error(), "program.bad2")
}
