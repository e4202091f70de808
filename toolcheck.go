package cudaext

import (
	"fmt"
	"os/exec"
	"strings"
)

var execLookPath = exec.LookPath

// ToolChecker is an optional interface for build steps that require external tools.
//
// BindingGenerator implements it; callers can verify tools before starting
// a build so a missing translator is reported before any source compiles:
//
//	if checker, ok := step.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return fmt.Errorf("build tools missing: %w", err)
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the list of tools this step needs.
	RequiredTools() []ToolRequirement

	// CheckTools verifies that all required tools are available.
	CheckTools() error
}

// ToolRequirement describes a build tool dependency.
//
// Tool with alternatives:
//
//	ToolRequirement{
//	    Name: "c++",
//	    Alternatives: []string{"g++", "clang++"},
//	    Purpose: "host compiler",
//	}
type ToolRequirement struct {
	// Name is the primary tool binary name or path.
	Name string

	// Alternatives are alternative tool names that can satisfy this requirement.
	Alternatives []string

	// Optional indicates this tool is optional and won't cause an error if missing.
	Optional bool

	// Purpose is a human-readable description of why this tool is needed.
	Purpose string
}

// CheckToolAvailable checks if a tool is available in the system PATH.
//
// Names containing a path separator are checked directly.
func CheckToolAvailable(tool string) error {
	_, err := execLookPath(tool)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies all required tools are available.
//
// # Error Format
//
// Single missing tool:
//
//	cython (binding source translator) not found in PATH
//
// Multiple missing tools:
//
//	missing required tools: c++ (host compiler), cython (binding source translator)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, req := range requirements {
		// Try the primary tool
		found := CheckToolAvailable(req.Name) == nil

		// If not found, try alternatives
		if !found && len(req.Alternatives) > 0 {
			for _, alt := range req.Alternatives {
				if CheckToolAvailable(alt) == nil {
					found = true
					break
				}
			}
		}

		// If still not found and not optional, record it
		if !found && !req.Optional {
			if req.Purpose != "" {
				missingTools = append(missingTools, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
			} else {
				missingTools = append(missingTools, req.Name)
			}
		}
	}

	if len(missingTools) == 0 {
		return nil
	}

	if len(missingTools) == 1 {
		return fmt.Errorf("%s not found in PATH", missingTools[0])
	}

	return fmt.Errorf("missing required tools: %s", strings.Join(missingTools, ", "))
}

// BuildRequirements lists the host-side tools a build of plan needs: the
// host compiler, the linker when it differs, and the binding generator's
// tools when the plan has binding sources. The device compiler is
// validated by Locate and is not repeated here.
func BuildRequirements(plan *BuildPlan, config *BuildConfig) []ToolRequirement {
	cfg := BuildConfig{}
	if config != nil {
		cfg = *config
	}
	applyDefaults(&cfg)

	reqs := []ToolRequirement{
		{Name: cfg.HostCompiler.Path, Purpose: "host compiler"},
	}
	if cfg.Linker.Path != cfg.HostCompiler.Path {
		reqs = append(reqs, ToolRequirement{Name: cfg.Linker.Path, Purpose: "linker"})
	}

	for _, src := range plan.Sources() {
		if src.Kind == KindBinding {
			reqs = append(reqs, cfg.Binding.RequiredTools()...)
			break
		}
	}

	return reqs
}

// CheckBuildTools verifies BuildRequirements before any compilation starts.
func CheckBuildTools(plan *BuildPlan, config *BuildConfig) error {
	return CheckRequiredTools(BuildRequirements(plan, config))
}
