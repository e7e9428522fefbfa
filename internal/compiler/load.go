package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/plaited/behavioral/internal/ir"
)

// LoadValue builds the CUE value at path. A directory is loaded as one CUE
// package instance; a single file is compiled on its own.
func LoadValue(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("load %s: %w", path, err)
	}

	ctx := cuecontext.New()
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("load %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("load %s: no CUE instances", path)
	}
	if err := instances[0].Err; err != nil {
		return cue.Value{}, fmt.Errorf("load %s: %w", path, err)
	}
	v := ctx.BuildInstance(instances[0])
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// Programs compiles every program declared under the top-level "program"
// struct. Compilation continues past errors so all of them are reported.
func Programs(v cue.Value) ([]ir.ProgramSpec, []error) {
	progVal := v.LookupPath(cue.ParsePath("program"))
	if !progVal.Exists() {
		return nil, []error{&CompileError{Field: "program", Message: "no programs declared", Pos: v.Pos()}}
	}

	iter, err := progVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []ir.ProgramSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileProgram(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("program.%s: %w", iter.Label(), err))
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

// LoadProgram loads path and returns the program called name. An empty
// name selects the only program in the source.
func LoadProgram(path, name string) (*ir.ProgramSpec, error) {
	v, err := LoadValue(path)
	if err != nil {
		return nil, err
	}

	if name != "" {
		return CompileProgram(v.LookupPath(cue.MakePath(cue.Str("program"), cue.Str(name))))
	}

	specs, errs := Programs(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(specs) != 1 {
		return nil, fmt.Errorf("%s declares %d programs; name one", path, len(specs))
	}
	return &specs[0], nil
}
