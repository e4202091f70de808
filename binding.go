package cudaext

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BindingGenerator translates binding sources (.pyx) into C++ so the host
// backend can compile them.
//
// # Command Template
//
// Command supports placeholders:
//
//	{{input}}  - The binding source (e.g., src/model.pyx)
//	{{output}} - The generated C++ file (e.g., build/temp/src/model.cpp)
//	{{dir}}    - The directory of the binding source
//
// # Example: Cython
//
//	gen := &BindingGenerator{
//	    Name:    "Cython",
//	    Command: []string{"cython", "--cplus", "-3", "-o", "{{output}}", "{{input}}"},
//	    Tools:   []ToolRequirement{{Name: "cython", Alternatives: []string{"cython3"}}},
//	}
type BindingGenerator struct {
	// Name is the human-readable generator name.
	Name string

	// Command is the translation command template.
	Command []string

	// OutputExtension is the extension of the generated file (default .cpp).
	OutputExtension string

	// Tools are the executables the generator needs in PATH.
	Tools []ToolRequirement
}

// DefaultBindingGenerator returns the Cython generator in C++ mode.
func DefaultBindingGenerator() *BindingGenerator {
	return &BindingGenerator{
		Name: "Cython",
		Command: []string{
			"cython", "--cplus", "-3",
			"-o", "{{output}}", "{{input}}",
		},
		OutputExtension: ".cpp",
		Tools: []ToolRequirement{
			{Name: "cython", Alternatives: []string{"cython3"}, Purpose: "binding source translator"},
		},
	}
}

// RequiredTools returns the tools needed for binding translation.
func (g *BindingGenerator) RequiredTools() []ToolRequirement {
	return g.Tools
}

// CheckTools verifies that the generator is available.
func (g *BindingGenerator) CheckTools() error {
	return CheckRequiredTools(g.RequiredTools())
}

// OutputPath returns where the generated file for source is written below tempDir.
func (g *BindingGenerator) OutputPath(tempDir, source string) string {
	ext := g.OutputExtension
	if ext == "" {
		ext = ".cpp"
	}
	rel := strings.TrimSuffix(objectRelPath(source), filepath.Ext(source))
	return filepath.Join(tempDir, rel+ext)
}

// Invocation resolves the translation command for source.
func (g *BindingGenerator) Invocation(source, output string) (Invocation, error) {
	if len(g.Command) == 0 {
		return Invocation{}, fmt.Errorf("no command configured for %s binding generator", g.Name)
	}

	// Replace placeholders in the command template
	args := make([]string, len(g.Command))
	for i, arg := range g.Command {
		arg = strings.ReplaceAll(arg, "{{input}}", source)
		arg = strings.ReplaceAll(arg, "{{output}}", output)
		arg = strings.ReplaceAll(arg, "{{dir}}", filepath.Dir(source))
		args[i] = arg
	}

	return Invocation{
		Step:       StepTranslate,
		Backend:    BackendHost,
		Source:     source,
		Input:      source,
		Output:     output,
		Executable: args[0],
		Args:       args[1:],
	}, nil
}

// Translate runs the generator for source and returns the generated file path.
//
// A failure is returned as a *CompileError with the generator's output
// kept verbatim.
func (g *BindingGenerator) Translate(ctx context.Context, runner Runner, tempDir, source string, stdout, stderr io.Writer) (string, string, error) {
	output := g.OutputPath(tempDir, source)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", filepath.Dir(output), err)
	}

	inv, err := g.Invocation(source, output)
	if err != nil {
		return "", "", err
	}

	captured, err := runCaptured(ctx, runner, inv, stdout, stderr)
	if err != nil {
		return "", captured, &CompileError{
			Source:  source,
			Step:    StepTranslate,
			Backend: BackendHost,
			Output:  captured,
			Err:     err,
		}
	}

	return output, captured, nil
}
