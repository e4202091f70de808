package cudaext

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
)

// Route is the backend selection for one source file.
type Route struct {
	Backend    Backend
	Executable Executable
	Args       []string // Backend argument list from the plan, unmodified
}

// Compilation is a single source-to-object request.
type Compilation struct {
	Source Source // Plan entry; its extension selects the backend
	Input  string // File handed to the compiler, Source.Path unless translated
	Object string // Object file to produce
}

// CompileOutput describes a finished compilation.
type CompileOutput struct {
	Invocation Invocation
	Object     string
	Output     string
}

// CompilerDispatcher selects the backend for each individual compilation.
//
// The host compiler starts out knowing the host and binding extensions. The
// device-kernel extension has to be registered once, before the first
// compilation, with RegisterDeviceExtension.
//
// The selected executable travels with each Invocation; the dispatcher
// never swaps a shared compiler setting, so a device compilation cannot
// leak into a later host compilation.
type CompilerDispatcher struct {
	toolkit    *ToolkitConfig
	plan       *BuildPlan
	host       Executable
	runner     Runner
	stdout     io.Writer
	stderr     io.Writer
	extensions map[string]Backend
}

// DispatcherOptions configures a CompilerDispatcher.
type DispatcherOptions struct {
	HostCompiler Executable
	Runner       Runner    // NewProcessRunner() when nil
	Stdout       io.Writer // Optional live copy of compiler stdout
	Stderr       io.Writer // Optional live copy of compiler stderr
}

// NewCompilerDispatcher creates a dispatcher for plan.
func NewCompilerDispatcher(toolkit *ToolkitConfig, plan *BuildPlan, opts DispatcherOptions) (*CompilerDispatcher, error) {
	if toolkit == nil {
		return nil, ErrNotConfigured
	}
	if plan == nil {
		return nil, fmt.Errorf("dispatcher requires a build plan")
	}
	if opts.HostCompiler.Path == "" {
		return nil, fmt.Errorf("dispatcher requires a host compiler")
	}

	runner := opts.Runner
	if runner == nil {
		runner = NewProcessRunner(nil)
	}

	extensions := make(map[string]Backend)
	for _, ext := range HostExtensions {
		extensions[ext] = BackendHost
	}
	extensions[BindingExtension] = BackendHost

	return &CompilerDispatcher{
		toolkit:    toolkit,
		plan:       plan,
		host:       Executable{Path: opts.HostCompiler.Path, Flags: cloneStrings(opts.HostCompiler.Flags)},
		runner:     runner,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		extensions: extensions,
	}, nil
}

// RegisterDeviceExtension teaches the dispatcher the device-kernel extension.
//
// Registering an extension the dispatcher already knows returns
// ErrAlreadyRegistered.
func (d *CompilerDispatcher) RegisterDeviceExtension(ext string) error {
	if _, ok := d.extensions[ext]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, ext)
	}
	d.extensions[ext] = BackendDevice
	return nil
}

// Recognizes reports whether path has a registered source extension.
func (d *CompilerDispatcher) Recognizes(path string) bool {
	_, ok := d.extensions[filepath.Ext(path)]
	return ok
}

// Route selects the backend, executable and argument list for src.
//
// Route is deterministic: the same plan and source always yield the same
// result.
func (d *CompilerDispatcher) Route(src Source) (Route, error) {
	backend, ok := d.extensions[filepath.Ext(src.Path)]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownSourceType, src.Path)
	}

	exe := d.host
	if backend == BackendDevice {
		exe = Executable{Path: d.toolkit.DeviceCompiler()}
	}

	return Route{
		Backend:    backend,
		Executable: Executable{Path: exe.Path, Flags: cloneStrings(exe.Flags)},
		Args:       d.plan.BackendArgs(backend),
	}, nil
}

// Invocation resolves the full command line for c without running it.
func (d *CompilerDispatcher) Invocation(c Compilation) (Invocation, error) {
	route, err := d.Route(c.Source)
	if err != nil {
		return Invocation{}, err
	}

	input := c.Input
	if input == "" {
		input = c.Source.Path
	}

	args := cloneStrings(route.Executable.Flags)
	for _, dir := range d.plan.IncludeDirs() {
		args = append(args, "-I"+dir)
	}
	args = append(args, "-c", input, "-o", c.Object)
	args = append(args, route.Args...)

	return Invocation{
		Step:       StepCompile,
		Backend:    route.Backend,
		Source:     c.Source.Path,
		Input:      input,
		Output:     c.Object,
		Executable: route.Executable.Path,
		Args:       args,
	}, nil
}

// Compile runs the selected backend for one source.
//
// A backend failure is returned as a *CompileError carrying the backend
// output exactly as it was written.
func (d *CompilerDispatcher) Compile(ctx context.Context, c Compilation) (*CompileOutput, error) {
	inv, err := d.Invocation(c)
	if err != nil {
		return nil, err
	}

	output, err := runCaptured(ctx, d.runner, inv, d.stdout, d.stderr)
	result := &CompileOutput{Invocation: inv, Object: c.Object, Output: output}
	if err != nil {
		return result, &CompileError{
			Source:  c.Source.Path,
			Step:    StepCompile,
			Backend: inv.Backend,
			Output:  output,
			Err:     err,
		}
	}

	return result, nil
}
