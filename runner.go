package cudaext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// execCommandContext is swapped in tests.
var execCommandContext = exec.CommandContext

// Runner executes one backend invocation.
//
// Implementations write the program's stdout and stderr to the given
// writers unchanged and return a non-nil error when the program could not
// be started or exited unsuccessfully.
type Runner interface {
	Run(ctx context.Context, inv Invocation, stdout, stderr io.Writer) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv Invocation, stdout, stderr io.Writer) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation, stdout, stderr io.Writer) error {
	return f(ctx, inv, stdout, stderr)
}

// ProcessRunner starts each invocation as a child process.
//
// Env is added to the process environment. The executable and arguments
// are passed to the process exactly as given; no $VAR expansion or shell
// quoting is applied.
type ProcessRunner struct {
	Env map[string]string
}

// NewProcessRunner creates a ProcessRunner with the given extra environment.
func NewProcessRunner(env map[string]string) *ProcessRunner {
	return &ProcessRunner{Env: env}
}

// Run executes inv and blocks until it exits.
func (r *ProcessRunner) Run(ctx context.Context, inv Invocation, stdout, stderr io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:gosec // Invocations come from the build plan
	cmd := execCommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	cmd.Env = os.Environ()
	for key, value := range r.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", inv.Executable, err)
	}
	return nil
}

// syncBuffer serializes writes from the stdout and stderr copiers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runCaptured runs inv, returning its combined output in write order while
// also copying it to the optional live writers.
func runCaptured(ctx context.Context, runner Runner, inv Invocation, stdout, stderr io.Writer) (string, error) {
	captured := &syncBuffer{}

	outW := io.Writer(captured)
	if stdout != nil {
		outW = io.MultiWriter(captured, stdout)
	}
	errW := io.Writer(captured)
	if stderr != nil {
		errW = io.MultiWriter(captured, stderr)
	}

	err := runner.Run(ctx, inv, outW, errW)
	return captured.String(), err
}
