package cudaext

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// newFakeToolkit lays out home/bin/nvcc, home/include and the platform lib
// directory below a temp dir and returns the validated config.
func newFakeToolkit(t *testing.T) *ToolkitConfig {
	t.Helper()

	home := writeToolkitLayout(t, t.TempDir(), true)
	toolkit, err := NewToolkitConfig(
		home,
		filepath.Join(home, "bin", defaultCompilerName()),
		filepath.Join(home, "include"),
		filepath.Join(home, filepath.FromSlash(defaultLibDirName())),
	)
	if err != nil {
		t.Fatalf("failed to create fake toolkit: %v", err)
	}
	return toolkit
}

// writeToolkitLayout creates a toolkit tree in home, optionally without include.
func writeToolkitLayout(t *testing.T, home string, withInclude bool) string {
	t.Helper()

	dirs := []string{
		filepath.Join(home, "bin"),
		filepath.Join(home, filepath.FromSlash(defaultLibDirName())),
	}
	if withInclude {
		dirs = append(dirs, filepath.Join(home, "include"))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	compiler := filepath.Join(home, "bin", defaultCompilerName())
	if err := os.WriteFile(compiler, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to write compiler: %v", err)
	}
	return home
}

// recordingRunner records every invocation and simulates backend behaviour.
type recordingRunner struct {
	mu          sync.Mutex
	invocations []Invocation

	// failOn maps a source path to the diagnostic its compilation prints
	// before failing.
	failOn map[string]string

	// failLink makes the link step fail with linkOutput.
	failLink   bool
	linkOutput string
}

func (r *recordingRunner) Run(_ context.Context, inv Invocation, stdout, stderr io.Writer) error {
	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()

	if msg, ok := r.failOn[inv.Source]; ok && inv.Step != StepLink {
		_, _ = io.WriteString(stderr, msg)
		return errors.New("exit status 1")
	}

	switch inv.Step {
	case StepLink:
		if r.failLink {
			_, _ = io.WriteString(stderr, r.linkOutput)
			return errors.New("exit status 1")
		}
		return os.WriteFile(inv.Output, []byte("module"), 0o755)
	case StepTranslate:
		return os.WriteFile(inv.Output, []byte("// generated\n"), 0o644)
	default:
		_, _ = io.WriteString(stdout, "compiled "+inv.Source+"\n")
		return nil
	}
}

func (r *recordingRunner) steps(step Step) []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Invocation
	for _, inv := range r.invocations {
		if inv.Step == step {
			out = append(out, inv)
		}
	}
	return out
}

func TestBuildError(t *testing.T) {
	output := []string{"line 1", "line 2", "error occurred"}
	err := BuildError("device", output, nil)

	expected := "device build failed\n\nBuild output:\nline 1\nline 2\nerror occurred"
	if err.Error() != expected {
		t.Errorf("BuildError output mismatch.\nExpected: %s\nGot: %s", expected, err.Error())
	}

	err = BuildError("host", nil, errors.New("exit status 1"))
	if err.Error() != "host build failed: exit status 1" {
		t.Errorf("unexpected error without output: %s", err.Error())
	}
}

func TestMatchesExtension(t *testing.T) {
	testCases := []struct {
		filename   string
		extensions []string
		expected   bool
	}{
		{"kernel.cu", []string{".cu"}, true},
		{"kernel.cu", []string{"cu"}, true},
		{"mesh.C", []string{".C"}, true},
		{"mesh.c", []string{".C"}, false},
		{"shader.cpp", []string{".c", ".cpp"}, true},
		{"binding.pyx", []string{".cu", ".cpp"}, false},
		{"noext", []string{".cu"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			result := MatchesExtension(tc.filename, tc.extensions...)
			if result != tc.expected {
				t.Errorf("MatchesExtension(%s, %v) = %v, expected %v",
					tc.filename, tc.extensions, result, tc.expected)
			}
		})
	}
}

func TestUniqueStrings(t *testing.T) {
	got := uniqueStrings([]string{"a", "", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
