package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plaited/behavioral/internal/compiler"
	"github.com/plaited/behavioral/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledProgram is one program with its hash and analysis findings.
type CompiledProgram struct {
	Program  ir.ProgramSpec     `json:"program"`
	Hash     string             `json:"hash"`
	Warnings []compiler.Warning `json:"warnings,omitempty"`
}

// CompilationResult holds the compiled programs.
type CompilationResult struct {
	Programs []CompiledProgram `json:"programs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program.cue>",
		Short: "Compile CUE programs to canonical IR",
		Long: `Compile behavioral programs from CUE to canonical IR.

The compiler parses a CUE file (or a directory holding one CUE package),
compiles every entry under "program", validates it and reports static
analysis warnings such as self-feeding event cycles. With --output the
canonical JSON IR is written to a file.

Examples:
  bsync compile ./programs/tictactoe.cue
  bsync compile ./programs -o programs.json
  bsync compile ./programs/hotcold.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPrograms(path)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	errs := loadErrors
	result := &CompilationResult{Programs: make([]CompiledProgram, 0, len(loadResult.Programs))}
	for _, spec := range loadResult.Programs {
		formatter.VerboseLog("Compiling program: %s (%d thread(s))", spec.Name, len(spec.Threads))

		verrs := compiler.Validate(&spec)
		for _, v := range verrs {
			errs = append(errs, fmt.Errorf("program.%s: %w", spec.Name, v))
		}
		if len(verrs) > 0 {
			continue
		}

		hash, err := ir.ProgramHash(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("program.%s: %w", spec.Name, err))
			continue
		}
		result.Programs = append(result.Programs, CompiledProgram{
			Program:  spec,
			Hash:     hash,
			Warnings: compiler.Analyze(&spec),
		})
	}

	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d program(s)\n\n", len(result.Programs))

	for _, p := range result.Programs {
		fmt.Fprintf(w, "  %s: %d thread(s), public %v\n", p.Program.Name, len(p.Program.Threads), p.Program.Public)
		fmt.Fprintf(w, "    hash %s\n", p.Hash)
		for _, warn := range p.Warnings {
			fmt.Fprintf(w, "    %s: %s\n", warn.Level, warn.Message)
		}
	}
	fmt.Fprintln(w)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Compilation failed")
	fmt.Fprintln(w)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(w, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(w, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, err.Error()
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the programs in canonical JSON, the form they are
// hashed in.
func writeIRToFile(result *CompilationResult, filename string) error {
	programs := make(ir.IRArray, len(result.Programs))
	for i, p := range result.Programs {
		programs[i] = p.Program.ToIR()
	}
	data, err := ir.MarshalCanonical(ir.IRObject{"programs": programs})
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
