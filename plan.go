package cudaext

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// SourceKind is the type of a source file, inferred from its extension.
type SourceKind int

// Source kinds
const (
	KindUnknown SourceKind = iota
	KindBinding            // Interpreter binding source (.pyx)
	KindDevice             // GPU kernel source (.cu)
	KindHost               // Native C/C++ source
)

func (k SourceKind) String() string {
	switch k {
	case KindBinding:
		return "binding"
	case KindDevice:
		return "device"
	case KindHost:
		return "host"
	default:
		return "unknown"
	}
}

// Backend identifies a compiler invocation path.
type Backend string

// Backends
const (
	BackendHost   Backend = "host"
	BackendDevice Backend = "device"
)

// Source file extensions by kind
const (
	DeviceExtension  = ".cu"
	BindingExtension = ".pyx"
)

// HostExtensions lists the extensions the host compiler accepts directly.
var HostExtensions = []string{".c", ".cc", ".cpp", ".cxx", ".C"}

// DefaultDeviceRuntimeLibrary is linked into every extension.
const DefaultDeviceRuntimeLibrary = "cudart"

// KindOf infers the source kind from the file extension alone.
func KindOf(path string) SourceKind {
	switch {
	case MatchesExtension(path, DeviceExtension):
		return KindDevice
	case MatchesExtension(path, BindingExtension):
		return KindBinding
	case MatchesExtension(path, HostExtensions...):
		return KindHost
	default:
		return KindUnknown
	}
}

// Source is one entry of a BuildPlan.
type Source struct {
	Path string
	Kind SourceKind
}

// PlanSpec is the externally supplied description of an extension module.
//
// Source lists are concatenated binding, device, host, in that order, and
// never reordered afterwards: the order is the compile order.
type PlanSpec struct {
	Name string

	BindingSources []string
	DeviceSources  []string
	HostSources    []string

	NumericIncludeDirs       []string // numeric-array headers (numpy)
	InterpreterIncludeDirs   []string // interpreter C API headers (Python.h)
	LinearAlgebraIncludeDirs []string // linear-algebra headers (eigen)
	ProjectIncludeDirs       []string // the project's own include/source dirs

	DeviceRuntimeLibrary string   // DefaultDeviceRuntimeLibrary when empty
	Libraries            []string // windowing/graphics/mesh-import libraries
	LibraryDirs          []string // extra library dirs, after the toolkit lib dir

	HostArgs   []string
	DeviceArgs []string
	LinkArgs   []string
}

// BuildPlan is the immutable description of one extension module build.
//
// All accessors return copies; a BuildPlan cannot be changed after
// NewBuildPlan returns it.
type BuildPlan struct {
	name        string
	sources     []Source
	includeDirs []string
	libraries   []string
	libraryDirs []string
	backendArgs map[Backend][]string
	linkArgs    []string
}

// NewBuildPlan assembles a BuildPlan from spec and the located toolkit.
//
// Include directories are merged as numeric, interpreter, linear-algebra,
// toolkit include, project. Libraries start with the device runtime library. The
// backend argument lists are copied as given; they are opaque to the plan
// and to the dispatcher.
func NewBuildPlan(spec PlanSpec, toolkit *ToolkitConfig) (*BuildPlan, error) {
	if toolkit == nil {
		return nil, ErrNotConfigured
	}
	if spec.Name == "" {
		return nil, errors.New("extension name is required")
	}

	var paths []string
	paths = append(paths, spec.BindingSources...)
	paths = append(paths, spec.DeviceSources...)
	paths = append(paths, spec.HostSources...)
	if len(paths) == 0 {
		return nil, fmt.Errorf("extension %s has no sources", spec.Name)
	}

	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		kind := KindOf(path)
		if kind == KindUnknown {
			return nil, fmt.Errorf("%w: %s (extension %q)", ErrUnknownSourceType, path, filepath.Ext(path))
		}
		sources = append(sources, Source{Path: path, Kind: kind})
	}
	if err := checkObjectCollisions(sources); err != nil {
		return nil, err
	}

	var includeDirs []string
	includeDirs = append(includeDirs, spec.NumericIncludeDirs...)
	includeDirs = append(includeDirs, spec.InterpreterIncludeDirs...)
	includeDirs = append(includeDirs, spec.LinearAlgebraIncludeDirs...)
	includeDirs = append(includeDirs, toolkit.IncludeDir())
	includeDirs = append(includeDirs, spec.ProjectIncludeDirs...)

	runtimeLib := spec.DeviceRuntimeLibrary
	if runtimeLib == "" {
		runtimeLib = DefaultDeviceRuntimeLibrary
	}
	libraries := append([]string{runtimeLib}, spec.Libraries...)
	libraryDirs := append([]string{toolkit.LibDir()}, spec.LibraryDirs...)

	return &BuildPlan{
		name:        spec.Name,
		sources:     sources,
		includeDirs: uniqueStrings(includeDirs),
		libraries:   uniqueStrings(libraries),
		libraryDirs: uniqueStrings(libraryDirs),
		backendArgs: map[Backend][]string{
			BackendHost:   cloneStrings(spec.HostArgs),
			BackendDevice: cloneStrings(spec.DeviceArgs),
		},
		linkArgs: cloneStrings(spec.LinkArgs),
	}, nil
}

// checkObjectCollisions rejects sources whose object files would overwrite
// each other below the temp dir.
func checkObjectCollisions(sources []Source) error {
	owners := make(map[string]string, len(sources))
	for _, src := range sources {
		rel := objectRelPath(src.Path)
		key := strings.TrimSuffix(rel, filepath.Ext(rel))
		if prev, ok := owners[key]; ok {
			return fmt.Errorf("%w: %s and %s", ErrObjectCollision, prev, src.Path)
		}
		owners[key] = src.Path
	}
	return nil
}

// Name returns the extension module name.
func (p *BuildPlan) Name() string { return p.name }

// Sources returns the sources in compile order.
func (p *BuildPlan) Sources() []Source { return append([]Source{}, p.sources...) }

// IncludeDirs returns the merged include directories.
func (p *BuildPlan) IncludeDirs() []string { return cloneStrings(p.includeDirs) }

// Libraries returns the libraries to link, device runtime first.
func (p *BuildPlan) Libraries() []string { return cloneStrings(p.libraries) }

// LibraryDirs returns the link and runtime library search directories.
func (p *BuildPlan) LibraryDirs() []string { return cloneStrings(p.libraryDirs) }

// LinkArgs returns extra arguments appended to the link command.
func (p *BuildPlan) LinkArgs() []string { return cloneStrings(p.linkArgs) }

// BackendArgs returns the argument list declared for backend b.
func (p *BuildPlan) BackendArgs(b Backend) []string { return cloneStrings(p.backendArgs[b]) }

// DefaultHostArgs returns the host compile arguments: compile only, -O3, C++11.
func DefaultHostArgs() []string {
	return []string{"-c", "-O3", "-std=c++11"}
}

// DefaultDeviceArgs returns the device compile arguments: sm_50, verbose
// ptxas diagnostics, -O3, C++11, compile only and position independent
// code for the host side.
func DefaultDeviceArgs() []string {
	return []string{
		"-arch=sm_50",
		"--ptxas-options=-v", "-O3",
		"-std=c++11",
		"-c", "--compiler-options", "'-fPIC'",
	}
}
