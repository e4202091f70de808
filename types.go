package cudaext

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// BuildResult contains the output and status of a build operation.
//
// After a build completes, this structure provides:
//   - Success status indicating if the artifact was linked
//   - Output lines captured from every backend invocation (stdout/stderr)
//   - Objects produced so far, in plan order
//   - Artifact path of the linked extension module (empty unless Success)
//   - Error information if the build was aborted
type BuildResult struct {
	BuildID  string   // Identifier of this build invocation
	Success  bool     // True if the artifact was linked
	State    State    // Terminal state of the executor
	Output   []string // Lines of output from the backends
	Objects  []string // Object files compiled before the build finished
	Artifact string   // Path to the linked extension module
	Error    error    // Error if the build failed, nil otherwise
}

// BuildConfig contains configuration for the build process.
//
// Paths:
//   - BuildDir: Root directory for intermediate files (objects, translated bindings)
//   - DestPath: Directory receiving the linked artifact (defaults to BuildDir)
//   - ExtSuffix: File suffix of the artifact, e.g. ".cpython-312-x86_64-linux-gnu.so"
//
// Host toolchain:
//   - HostCompiler: Executable used for host sources
//   - Linker: Executable used to link the artifact (defaults to HostCompiler)
//   - Binding: Generator translating binding sources before host compilation
//
// Execution:
//   - Runner: Executes backend invocations (defaults to the shell runner)
//   - Env: Environment variables set for every invocation
//   - Stdout/Stderr: Optional live copies of backend output
//   - Logger: Structured logger (defaults to a discarding logger)
type BuildConfig struct {
	// Paths
	BuildDir  string // Intermediate file directory
	DestPath  string // Destination directory for the artifact
	ExtSuffix string // Artifact suffix, platform default when empty

	// Host toolchain
	HostCompiler Executable        // Host compiler and its fixed flags
	Linker       Executable        // Linker, HostCompiler when Path is empty
	Binding      *BindingGenerator // Binding source translator, DefaultBindingGenerator when nil

	// Execution
	Runner Runner             // Backend invocation runner
	Env    map[string]string  // Environment variables for every invocation
	Stdout io.Writer          // Live copy of backend stdout
	Stderr io.Writer          // Live copy of backend stderr
	Logger logrus.FieldLogger // Structured logger

	// Build options
	Verbose bool // Record each command line in the output
}

// Executable is a program plus the flags that always precede per-call arguments.
type Executable struct {
	Path  string
	Flags []string
}

// Step identifies which phase of the build an Invocation belongs to.
type Step string

// Build steps
const (
	StepTranslate Step = "translate" // Binding source to C++
	StepCompile   Step = "compile"   // Source to object file
	StepLink      Step = "link"      // Objects to extension module
)

// Invocation is one fully resolved command run by a Runner.
type Invocation struct {
	Step       Step     // Build phase
	Backend    Backend  // Backend for StepCompile, BackendHost otherwise
	Source     string   // Source path the invocation was created for, if any
	Input      string   // File consumed, the translated file for binding sources
	Output     string   // File produced
	Executable string   // Program to run
	Args       []string // Complete argument list
}

// CommandLine returns the invocation as a single space separated string.
func (inv Invocation) CommandLine() string {
	return strings.Join(append([]string{inv.Executable}, inv.Args...), " ")
}
