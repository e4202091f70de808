package cudaext

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors. Both are detected before any compilation starts.
var (
	ErrToolkitNotFound   = errors.New("toolkit not found")
	ErrToolkitIncomplete = errors.New("toolkit incomplete")
)

// Dispatch and executor errors.
var (
	ErrUnknownSourceType = errors.New("unknown source type")
	ErrObjectCollision   = errors.New("sources map to the same object file")
	ErrAlreadyRegistered = errors.New("source extension already registered")
	ErrNotConfigured     = errors.New("executor is not configured")
	ErrBuildFinished     = errors.New("build already finished")
)

// ToolkitNotFoundError is returned when neither the override variable nor
// the executable search path leads to a device compiler.
type ToolkitNotFoundError struct {
	OverrideEnv  string
	CompilerName string
}

func (e *ToolkitNotFoundError) Error() string {
	return fmt.Sprintf("the %s binary could not be located in your $PATH; either add it to your path, or set $%s",
		e.CompilerName, e.OverrideEnv)
}

// Is reports ErrToolkitNotFound as the sentinel for this error.
func (e *ToolkitNotFoundError) Is(target error) bool {
	return target == ErrToolkitNotFound
}

// ToolkitIncompleteError names the first toolkit path that failed validation.
type ToolkitIncompleteError struct {
	Component string // home, compiler, include or lib
	Path      string
	Reason    string // empty when the path does not exist
}

func (e *ToolkitIncompleteError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "could not be located"
	}
	return fmt.Sprintf("the toolkit %s path %s %s; repair the installation or point the override at a complete toolkit",
		e.Component, e.Path, reason)
}

// Is reports ErrToolkitIncomplete as the sentinel for this error.
func (e *ToolkitIncompleteError) Is(target error) bool {
	return target == ErrToolkitIncomplete
}

// CompileError is returned when a backend fails on a single source.
//
// Output holds the backend's combined output exactly as it was written;
// Error() embeds it unchanged after the BuildError header.
type CompileError struct {
	Source  string
	Step    Step
	Backend Backend
	Output  string
	Err     error
}

func (e *CompileError) Error() string {
	var output []string
	if e.Output != "" {
		output = []string{strings.TrimSuffix(e.Output, "\n")}
	}
	label := string(e.Backend)
	if e.Step == StepTranslate {
		label = "binding"
	}
	return BuildError(fmt.Sprintf("%s (%s)", label, e.Source), output, e.Err).Error()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// LinkError is returned when linking the compiled objects fails.
type LinkError struct {
	Artifact string
	Output   string
	Err      error
}

func (e *LinkError) Error() string {
	var output []string
	if e.Output != "" {
		output = []string{strings.TrimSuffix(e.Output, "\n")}
	}
	return BuildError(fmt.Sprintf("link (%s)", e.Artifact), output, e.Err).Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
