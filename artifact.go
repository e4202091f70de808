package cudaext

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// Platform constants
const (
	platformWindows = "windows"
	platformDarwin  = "darwin"
)

// DefaultExtSuffix returns the extension module suffix used when the
// interpreter does not report one.
func DefaultExtSuffix() string {
	if runtime.GOOS == platformWindows {
		return ".pyd"
	}
	return ".so"
}

func objectExtension() string {
	if runtime.GOOS == platformWindows {
		return ".obj"
	}
	return ".o"
}

// objectRelPath maps a source path to a relative path below the temp dir.
// Absolute prefixes and parent references are dropped so objects never
// escape the build directory.
func objectRelPath(source string) string {
	clean := filepath.Clean(source)
	clean = strings.TrimPrefix(clean, filepath.VolumeName(clean))

	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return filepath.Base(source)
	}
	return filepath.Join(parts...)
}

// ObjectPath returns the object file path for source below tempDir.
func ObjectPath(tempDir, source string) string {
	rel := objectRelPath(source)
	return filepath.Join(tempDir, strings.TrimSuffix(rel, filepath.Ext(rel))+objectExtension())
}

// ArtifactPath returns the path of the linked extension module.
//
// Dotted module names map to subdirectories: "pkg.pose" becomes
// destDir/pkg/pose<suffix>.
func ArtifactPath(destDir, name, suffix string) string {
	if suffix == "" {
		suffix = DefaultExtSuffix()
	}
	parts := strings.Split(name, ".")
	return filepath.Join(append([]string{destDir}, parts...)...) + suffix
}

// stagingPath returns a unique sibling of artifact used while linking.
func stagingPath(artifact string, id uuid.UUID) string {
	return filepath.Join(filepath.Dir(artifact), fmt.Sprintf(".%s.%s.tmp", filepath.Base(artifact), id))
}

// sharedLinkFlags returns the flags that make the linker emit a loadable module.
func sharedLinkFlags() []string {
	switch runtime.GOOS {
	case platformDarwin:
		return []string{"-bundle", "-undefined", "dynamic_lookup"}
	default:
		return []string{"-shared"}
	}
}

// linkInvocation resolves the link command for plan.
func linkInvocation(linker Executable, plan *BuildPlan, objects []string, output string) Invocation {
	args := cloneStrings(linker.Flags)
	args = append(args, sharedLinkFlags()...)
	args = append(args, objects...)

	for _, dir := range plan.LibraryDirs() {
		args = append(args, "-L"+dir)
	}
	if runtime.GOOS != platformWindows {
		for _, dir := range plan.LibraryDirs() {
			args = append(args, "-Wl,-rpath,"+dir)
		}
	}
	for _, lib := range plan.Libraries() {
		args = append(args, "-l"+lib)
	}

	args = append(args, plan.LinkArgs()...)
	args = append(args, "-o", output)

	return Invocation{
		Step:       StepLink,
		Backend:    BackendHost,
		Output:     output,
		Executable: linker.Path,
		Args:       args,
	}
}
