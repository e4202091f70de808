package cudaext

import (
	"os"
	"path/filepath"
	"runtime"
)

// Toolkit discovery defaults
const (
	DefaultOverrideEnv  = "CUDA_ROOT"
	DefaultCompilerName = "nvcc"
)

// Toolkit path components, in validation order.
const (
	componentHome     = "home"
	componentCompiler = "compiler"
	componentInclude  = "include"
	componentLib      = "lib"
)

// ToolkitConfig describes a validated GPU toolkit installation.
//
// A ToolkitConfig is constructed once, before any compilation, and is
// read-only afterwards. It is passed explicitly to NewBuildPlan,
// NewCompilerDispatcher and NewBuildExecutor.
type ToolkitConfig struct {
	home           string
	deviceCompiler string
	includeDir     string
	libDir         string
}

// Home returns the toolkit root directory.
func (t *ToolkitConfig) Home() string { return t.home }

// DeviceCompiler returns the path of the device compiler executable.
func (t *ToolkitConfig) DeviceCompiler() string { return t.deviceCompiler }

// IncludeDir returns the toolkit header directory.
func (t *ToolkitConfig) IncludeDir() string { return t.includeDir }

// LibDir returns the toolkit library directory.
func (t *ToolkitConfig) LibDir() string { return t.libDir }

// LocateOptions controls toolkit discovery. Zero values select the defaults.
type LocateOptions struct {
	// OverrideEnv names the variable holding the toolkit home (default CUDA_ROOT).
	OverrideEnv string

	// CompilerName is the device compiler binary name (default nvcc, nvcc.exe on Windows).
	CompilerName string

	// LibDirName is the library directory below home (default per platform).
	LibDirName string

	// LookupEnv reads environment variables (default os.LookupEnv).
	LookupEnv func(string) (string, bool)

	// SearchPath is the executable search path (default $PATH).
	SearchPath *string
}

func (o LocateOptions) withDefaults() LocateOptions {
	if o.OverrideEnv == "" {
		o.OverrideEnv = DefaultOverrideEnv
	}
	if o.CompilerName == "" {
		o.CompilerName = defaultCompilerName()
	}
	if o.LibDirName == "" {
		o.LibDirName = defaultLibDirName()
	}
	if o.LookupEnv == nil {
		o.LookupEnv = os.LookupEnv
	}
	if o.SearchPath == nil {
		path, _ := o.LookupEnv("PATH")
		o.SearchPath = &path
	}
	return o
}

// Locate discovers and validates the toolkit installation.
//
// If the override variable is set, its value is the toolkit home and the
// device compiler is home/bin/<compiler>. Otherwise every directory of the
// search path is checked in order for the compiler binary; the first hit
// gives the compiler's absolute path and home is two levels above it.
//
// Returns ErrToolkitNotFound when neither source yields a compiler and
// ErrToolkitIncomplete, naming the first missing path, when the derived
// layout is not complete.
func Locate(opts LocateOptions) (*ToolkitConfig, error) {
	opts = opts.withDefaults()

	var home, compiler string
	if override, ok := opts.LookupEnv(opts.OverrideEnv); ok {
		home = override
		compiler = filepath.Join(home, "bin", opts.CompilerName)
	} else {
		compiler = findInPath(opts.CompilerName, *opts.SearchPath)
		if compiler == "" {
			return nil, &ToolkitNotFoundError{
				OverrideEnv:  opts.OverrideEnv,
				CompilerName: opts.CompilerName,
			}
		}
		home = filepath.Dir(filepath.Dir(compiler))
	}

	return NewToolkitConfig(
		home,
		compiler,
		filepath.Join(home, "include"),
		filepath.Join(home, filepath.FromSlash(opts.LibDirName)),
	)
}

// NewToolkitConfig validates an explicit toolkit layout.
//
// Paths are checked in the order home, compiler, include, lib; the first
// one that does not exist is returned in a ToolkitIncompleteError. The
// compiler must also be an executable regular file.
func NewToolkitConfig(home, deviceCompiler, includeDir, libDir string) (*ToolkitConfig, error) {
	checks := []struct {
		component string
		path      string
	}{
		{componentHome, home},
		{componentCompiler, deviceCompiler},
		{componentInclude, includeDir},
		{componentLib, libDir},
	}

	for _, check := range checks {
		if _, err := os.Stat(check.path); err != nil {
			return nil, &ToolkitIncompleteError{Component: check.component, Path: check.path}
		}
	}

	if err := checkExecutable(deviceCompiler); err != nil {
		return nil, &ToolkitIncompleteError{
			Component: componentCompiler,
			Path:      deviceCompiler,
			Reason:    err.Error(),
		}
	}

	return &ToolkitConfig{
		home:           home,
		deviceCompiler: deviceCompiler,
		includeDir:     includeDir,
		libDir:         libDir,
	}, nil
}

// findInPath returns the absolute path of name in the first search path
// directory containing it, or "" when no directory does.
func findInPath(name, searchPath string) string {
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			return candidate
		}
		return abs
	}
	return ""
}

func defaultCompilerName() string {
	if runtime.GOOS == platformWindows {
		return DefaultCompilerName + ".exe"
	}
	return DefaultCompilerName
}

func defaultLibDirName() string {
	switch runtime.GOOS {
	case platformWindows:
		return "lib/x64"
	case platformDarwin:
		return "lib"
	default:
		return "lib64"
	}
}
