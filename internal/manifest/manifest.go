// Package manifest loads the HCL build manifest (cudaext.hcl) that
// describes the extension modules of a project.
//
// # Format
//
//	extension "pose_estimation" {
//	  binding_sources  = ["src/model_base_ransac_estimation.pyx"]
//	  device_sources   = ["cuda/evaluate_gpu.cu"]
//	  host_sources     = ["src/pose_estimator.cpp", "src/shader.cpp", "src/Mesh.cpp"]
//	  numeric_includes = compact([python.numpy_include])
//	  linalg_includes  = [env("EIGEN_INCLUDE", "/usr/include/eigen3")]
//	  include_dirs     = ["src"]
//	  libraries        = ["assimp", "glfw", "GLEW"]
//	}
//
// Expressions can use the toolkit.* (home, compiler, include, lib) and
// python.* (executable, version, include, numpy_include, ext_suffix)
// variables and the env, compact and concat functions. env(name) returns ""
// for an unset variable; env(name, fallback) returns fallback instead.
//
// Blocks with binding_sources get the probed python.include directory
// after numeric_includes without listing it.
//
// host_args and device_args default to cudaext.DefaultHostArgs and
// cudaext.DefaultDeviceArgs when omitted. Setting enabled = false keeps a
// block in the file without building it by default.
package manifest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	cudaext "github.com/contriboss/cuda-extension-go"
	"github.com/contriboss/cuda-extension-go/internal/logger"
	"github.com/contriboss/cuda-extension-go/internal/pyenv"
)

// DefaultFile is the manifest name looked up in the working directory.
const DefaultFile = "cudaext.hcl"

// fileRoot decodes the top-level blocks of a manifest.
type fileRoot struct {
	Extensions []*extensionBlock `hcl:"extension,block"`
}

type extensionBlock struct {
	Name    string `hcl:"name,label"`
	Enabled *bool  `hcl:"enabled,optional"`

	BindingSources []string `hcl:"binding_sources,optional"`
	DeviceSources  []string `hcl:"device_sources,optional"`
	HostSources    []string `hcl:"host_sources,optional"`

	NumericIncludes []string `hcl:"numeric_includes,optional"`
	LinalgIncludes  []string `hcl:"linalg_includes,optional"`
	IncludeDirs     []string `hcl:"include_dirs,optional"`

	RuntimeLibrary string   `hcl:"runtime_library,optional"`
	Libraries      []string `hcl:"libraries,optional"`
	LibraryDirs    []string `hcl:"library_dirs,optional"`

	HostArgs   []string `hcl:"host_args,optional"`
	DeviceArgs []string `hcl:"device_args,optional"`
	LinkArgs   []string `hcl:"link_args,optional"`
}

// Variables are the values exposed to manifest expressions.
type Variables struct {
	Toolkit   *cudaext.ToolkitConfig
	Python    *pyenv.Interpreter
	LookupEnv func(string) (string, bool) // os.LookupEnv when nil
}

// Extension is one extension block.
type Extension struct {
	Name    string
	Enabled bool
	Spec    cudaext.PlanSpec
}

// Manifest is a decoded manifest file.
type Manifest struct {
	Path       string
	Extensions []Extension
}

// Load reads and decodes the manifest at path.
func Load(ctx context.Context, path string, vars Variables) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(ctx, src, path, vars)
}

// Parse decodes manifest source. filename is used in diagnostics.
func Parse(ctx context.Context, src []byte, filename string, vars Variables) (*Manifest, error) {
	log := logger.FromContext(ctx).WithField("manifest", filename)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(vars), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	m := &Manifest{Path: filename}
	seen := make(map[string]struct{})
	for _, block := range root.Extensions {
		if _, dup := seen[block.Name]; dup {
			return nil, fmt.Errorf("manifest %s: extension %q is declared more than once", filename, block.Name)
		}
		seen[block.Name] = struct{}{}
		m.Extensions = append(m.Extensions, block.toExtension(vars.Python))
	}
	if len(m.Extensions) == 0 {
		return nil, fmt.Errorf("manifest %s declares no extension", filename)
	}

	log.WithField("extensions", len(m.Extensions)).Debug("Manifest loaded")
	return m, nil
}

func (b *extensionBlock) toExtension(python *pyenv.Interpreter) Extension {
	enabled := true
	if b.Enabled != nil {
		enabled = *b.Enabled
	}

	hostArgs := b.HostArgs
	if hostArgs == nil {
		hostArgs = cudaext.DefaultHostArgs()
	}
	deviceArgs := b.DeviceArgs
	if deviceArgs == nil {
		deviceArgs = cudaext.DefaultDeviceArgs()
	}

	// Generated binding sources include Python.h
	var interpIncludes []string
	if len(b.BindingSources) > 0 && python != nil && python.IncludeDir != "" {
		interpIncludes = []string{python.IncludeDir}
	}

	return Extension{
		Name:    b.Name,
		Enabled: enabled,
		Spec: cudaext.PlanSpec{
			Name:                     b.Name,
			BindingSources:           b.BindingSources,
			DeviceSources:            b.DeviceSources,
			HostSources:              b.HostSources,
			NumericIncludeDirs:       b.NumericIncludes,
			InterpreterIncludeDirs:   interpIncludes,
			LinearAlgebraIncludeDirs: b.LinalgIncludes,
			ProjectIncludeDirs:       b.IncludeDirs,
			DeviceRuntimeLibrary:     b.RuntimeLibrary,
			Libraries:                b.Libraries,
			LibraryDirs:              b.LibraryDirs,
			HostArgs:                 hostArgs,
			DeviceArgs:               deviceArgs,
			LinkArgs:                 b.LinkArgs,
		},
	}
}

// Select returns the extension called name. With an empty name the single
// enabled extension is returned.
func (m *Manifest) Select(name string) (*Extension, error) {
	if name != "" {
		for i := range m.Extensions {
			if m.Extensions[i].Name == name {
				return &m.Extensions[i], nil
			}
		}
		return nil, fmt.Errorf("manifest %s has no extension %q (have: %s)", m.Path, name, strings.Join(m.Names(), ", "))
	}

	var enabled []*Extension
	for i := range m.Extensions {
		if m.Extensions[i].Enabled {
			enabled = append(enabled, &m.Extensions[i])
		}
	}
	switch len(enabled) {
	case 1:
		return enabled[0], nil
	case 0:
		return nil, fmt.Errorf("manifest %s has no enabled extension; choose one of: %s", m.Path, strings.Join(m.Names(), ", "))
	default:
		names := make([]string, 0, len(enabled))
		for _, ext := range enabled {
			names = append(names, ext.Name)
		}
		return nil, fmt.Errorf("manifest %s has several enabled extensions; choose one of: %s", m.Path, strings.Join(names, ", "))
	}
}

// Names returns the sorted extension names.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Extensions))
	for _, ext := range m.Extensions {
		names = append(names, ext.Name)
	}
	sort.Strings(names)
	return names
}

func evalContext(vars Variables) *hcl.EvalContext {
	lookup := vars.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	toolkit := map[string]cty.Value{
		"home":     cty.StringVal(""),
		"compiler": cty.StringVal(""),
		"include":  cty.StringVal(""),
		"lib":      cty.StringVal(""),
	}
	if vars.Toolkit != nil {
		toolkit["home"] = cty.StringVal(vars.Toolkit.Home())
		toolkit["compiler"] = cty.StringVal(vars.Toolkit.DeviceCompiler())
		toolkit["include"] = cty.StringVal(vars.Toolkit.IncludeDir())
		toolkit["lib"] = cty.StringVal(vars.Toolkit.LibDir())
	}

	python := pyenv.Interpreter{}
	if vars.Python != nil {
		python = *vars.Python
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"toolkit": cty.ObjectVal(toolkit),
			"python": cty.ObjectVal(map[string]cty.Value{
				"executable":    cty.StringVal(python.Executable),
				"version":       cty.StringVal(python.Version),
				"include":       cty.StringVal(python.IncludeDir),
				"numpy_include": cty.StringVal(python.NumericIncludeDir),
				"ext_suffix":    cty.StringVal(python.ExtSuffix),
			}),
		},
		Functions: map[string]function.Function{
			"env":     envFunc(lookup),
			"compact": stdlib.CompactFunc,
			"concat":  stdlib.ConcatFunc,
		},
	}
}

// envFunc returns the value of an environment variable. Unset and empty
// variables yield the optional fallback, or "".
func envFunc(lookup func(string) (string, bool)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "fallback", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if len(args) > 2 {
				return cty.NilVal, fmt.Errorf("env takes at most one fallback, got %d", len(args)-1)
			}
			if value, ok := lookup(args[0].AsString()); ok && value != "" {
				return cty.StringVal(value), nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return cty.StringVal(""), nil
		},
	})
}
