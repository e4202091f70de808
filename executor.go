package cudaext

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a BuildExecutor.
type State int

// Executor states
const (
	StateUnconfigured State = iota
	StateConfigured
	StateCompiling
	StateLinked
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateCompiling:
		return "compiling"
	case StateLinked:
		return "linked"
	case StateAborted:
		return "aborted"
	default:
		return "unconfigured"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateLinked || s == StateAborted
}

// Default host toolchain and directories
const (
	DefaultHostCompiler = "c++"
	DefaultBuildDir     = "build"
	tempDirName         = "temp"
)

// BuildExecutor drives one extension build.
//
// # Process Flow
//
//  1. Register the device-kernel extension with the dispatcher
//  2. For each plan source, in order: translate binding sources, then
//     compile through the dispatcher
//  3. Stop at the first failure; nothing is linked
//  4. Link all objects into a staging file and move it to the artifact name
//
// A BuildExecutor runs exactly once. After Build returns, the executor is
// in StateLinked or StateAborted and further calls return ErrBuildFinished.
//
// # Thread Safety
//
// BuildExecutor is NOT thread-safe. Builds are single-threaded and compile
// one source at a time.
type BuildExecutor struct {
	id         uuid.UUID
	toolkit    *ToolkitConfig
	plan       *BuildPlan
	config     BuildConfig
	dispatcher *CompilerDispatcher
	log        logrus.FieldLogger

	state   State
	current int
}

// NewBuildExecutor creates an executor in StateConfigured.
//
// The toolkit must already be located; a nil toolkit returns ErrNotConfigured.
func NewBuildExecutor(toolkit *ToolkitConfig, plan *BuildPlan, config *BuildConfig) (*BuildExecutor, error) {
	if toolkit == nil {
		return nil, ErrNotConfigured
	}
	if plan == nil {
		return nil, fmt.Errorf("executor requires a build plan")
	}

	cfg := BuildConfig{}
	if config != nil {
		cfg = *config
	}
	applyDefaults(&cfg)

	dispatcher, err := NewCompilerDispatcher(toolkit, plan, DispatcherOptions{
		HostCompiler: cfg.HostCompiler,
		Runner:       cfg.Runner,
		Stdout:       cfg.Stdout,
		Stderr:       cfg.Stderr,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	return &BuildExecutor{
		id:         id,
		toolkit:    toolkit,
		plan:       plan,
		config:     cfg,
		dispatcher: dispatcher,
		log:        cfg.Logger.WithFields(logrus.Fields{"build_id": id.String(), "extension": plan.Name()}),
		state:      StateConfigured,
	}, nil
}

func applyDefaults(cfg *BuildConfig) {
	if cfg.BuildDir == "" {
		cfg.BuildDir = DefaultBuildDir
	}
	if cfg.DestPath == "" {
		cfg.DestPath = cfg.BuildDir
	}
	if cfg.ExtSuffix == "" {
		cfg.ExtSuffix = DefaultExtSuffix()
	}
	if cfg.HostCompiler.Path == "" {
		cfg.HostCompiler.Path = DefaultHostCompiler
	}
	if cfg.Linker.Path == "" {
		cfg.Linker = cfg.HostCompiler
	}
	if cfg.Binding == nil {
		cfg.Binding = DefaultBindingGenerator()
	}
	if cfg.Runner == nil {
		cfg.Runner = NewProcessRunner(cfg.Env)
	}
	if cfg.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		cfg.Logger = discard
	}
}

// ID returns the build identifier used in logs and staging file names.
func (e *BuildExecutor) ID() string { return e.id.String() }

// State returns the current lifecycle state.
func (e *BuildExecutor) State() State { return e.state }

// Progress returns the 1-based index of the source being compiled and the
// number of sources in the plan.
func (e *BuildExecutor) Progress() (current, total int) {
	return e.current, len(e.plan.sources)
}

// Dispatcher returns the executor's compiler dispatcher.
func (e *BuildExecutor) Dispatcher() *CompilerDispatcher { return e.dispatcher }

// Plan returns the plan being built.
func (e *BuildExecutor) Plan() *BuildPlan { return e.plan }

// TempDir returns the directory holding objects and translated bindings.
func (e *BuildExecutor) TempDir() string {
	return filepath.Join(e.config.BuildDir, tempDirName)
}

// ArtifactPath returns where the linked module is written.
func (e *BuildExecutor) ArtifactPath() string {
	return ArtifactPath(e.config.DestPath, e.plan.Name(), e.config.ExtSuffix)
}

// Build compiles every plan source in order and links the artifact.
//
// Returns:
//   - BuildResult with Success=true and Artifact set on success
//   - BuildResult with Success=false, State=StateAborted and Error on
//     failure; compile failures are *CompileError, link failures *LinkError
func (e *BuildExecutor) Build(ctx context.Context) (*BuildResult, error) {
	switch {
	case e.state == StateUnconfigured:
		return nil, ErrNotConfigured
	case e.state != StateConfigured:
		return nil, ErrBuildFinished
	}

	result := &BuildResult{
		BuildID: e.id.String(),
		State:   e.state,
		Output:  []string{},
	}

	if err := e.registerDeviceExtension(); err != nil {
		return e.abort(result, err)
	}

	tempDir := e.TempDir()
	sources := e.plan.Sources()
	e.state = StateCompiling
	e.log.WithField("sources", len(sources)).Info("Starting extension build")

	for i, src := range sources {
		e.current = i + 1

		// Check for context cancellation
		if err := ctx.Err(); err != nil {
			return e.abort(result, err)
		}

		object, err := e.compileSource(ctx, tempDir, src, result)
		if err != nil {
			return e.abort(result, err)
		}
		result.Objects = append(result.Objects, object)
	}

	artifact, err := e.link(ctx, result.Objects, result)
	if err != nil {
		return e.abort(result, err)
	}

	e.state = StateLinked
	result.State = e.state
	result.Artifact = artifact
	result.Success = true
	e.log.WithField("artifact", artifact).Info("Extension linked")
	return result, nil
}

// Commands resolves every invocation Build would run, in order, without
// running any of them or touching the file system. The link invocation
// writes straight to ArtifactPath.
func (e *BuildExecutor) Commands() ([]Invocation, error) {
	if err := e.registerDeviceExtension(); err != nil {
		return nil, err
	}

	tempDir := e.TempDir()
	var invocations []Invocation
	var objects []string
	for _, src := range e.plan.Sources() {
		input := src.Path
		if src.Kind == KindBinding {
			generated := e.config.Binding.OutputPath(tempDir, src.Path)
			inv, err := e.config.Binding.Invocation(src.Path, generated)
			if err != nil {
				return nil, err
			}
			invocations = append(invocations, inv)
			input = generated
		}

		object := ObjectPath(tempDir, src.Path)
		inv, err := e.dispatcher.Invocation(Compilation{Source: src, Input: input, Object: object})
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
		objects = append(objects, object)
	}

	invocations = append(invocations, linkInvocation(e.config.Linker, e.plan, objects, e.ArtifactPath()))
	return invocations, nil
}

// registerDeviceExtension registers the device-kernel extension once.
func (e *BuildExecutor) registerDeviceExtension() error {
	if e.dispatcher.Recognizes(DeviceExtension) {
		return nil
	}
	return e.dispatcher.RegisterDeviceExtension(DeviceExtension)
}

// compileSource translates src if it is a binding source and compiles it.
func (e *BuildExecutor) compileSource(ctx context.Context, tempDir string, src Source, result *BuildResult) (string, error) {
	_, total := e.Progress()
	log := e.log.WithFields(logrus.Fields{
		"source": src.Path,
		"kind":   src.Kind.String(),
		"index":  e.current,
		"total":  total,
	})

	input := src.Path
	if src.Kind == KindBinding {
		log.Debug("Translating binding source")
		generated, output, err := e.config.Binding.Translate(ctx, e.config.Runner, tempDir, src.Path, e.config.Stdout, e.config.Stderr)
		e.appendOutput(result, output)
		if err != nil {
			return "", err
		}
		input = generated
	}

	object := ObjectPath(tempDir, src.Path)
	if err := os.MkdirAll(filepath.Dir(object), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(object), err)
	}

	compiled, err := e.dispatcher.Compile(ctx, Compilation{Source: src, Input: input, Object: object})
	if compiled != nil {
		log = log.WithField("backend", string(compiled.Invocation.Backend))
		if e.config.Verbose {
			result.Output = append(result.Output, fmt.Sprintf("Running: %s", compiled.Invocation.CommandLine()))
		}
		e.appendOutput(result, compiled.Output)
	}
	if err != nil {
		log.WithError(err).Error("Compilation failed")
		return "", err
	}

	log.Info("Compiled source")
	return object, nil
}

// link runs the linker into a staging file and promotes it to the artifact.
func (e *BuildExecutor) link(ctx context.Context, objects []string, result *BuildResult) (string, error) {
	artifact := e.ArtifactPath()
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(artifact), err)
	}

	staging := stagingPath(artifact, e.id)
	inv := linkInvocation(e.config.Linker, e.plan, objects, staging)
	if e.config.Verbose {
		result.Output = append(result.Output, fmt.Sprintf("Running: %s", inv.CommandLine()))
	}

	output, err := runCaptured(ctx, e.config.Runner, inv, e.config.Stdout, e.config.Stderr)
	e.appendOutput(result, output)
	if err != nil {
		_ = os.Remove(staging)
		return "", &LinkError{Artifact: artifact, Output: output, Err: err}
	}

	// staging is a sibling of artifact, so the rename never crosses devices
	if err := os.Rename(staging, artifact); err != nil {
		_ = os.Remove(staging)
		return "", &LinkError{Artifact: artifact, Err: err}
	}

	return artifact, nil
}

// abort moves the executor to StateAborted and records err.
func (e *BuildExecutor) abort(result *BuildResult, err error) (*BuildResult, error) {
	e.state = StateAborted
	result.State = e.state
	result.Success = false
	result.Error = err
	e.log.WithError(err).Warn("Extension build aborted")
	return result, err
}

func (e *BuildExecutor) appendOutput(result *BuildResult, output string) {
	if output == "" {
		return
	}
	result.Output = append(result.Output, strings.Split(strings.TrimSuffix(output, "\n"), "\n")...)
}
