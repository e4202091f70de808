package cudaext

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BuildError creates a standardized build error with output context.
//
// This helper formats build errors consistently across all build steps,
// including the backend output for debugging. The output lines are joined
// back exactly as the backend produced them.
//
// # Format
//
// With error and output:
//
//	device build failed: exit status 2
//
//	Build output:
//	cuda/evaluate_gpu.cu(12): error: identifier "foo" is undefined
//
// With error but no output:
//
//	device build failed: exit status 2
//
// With output but no error:
//
//	device build failed
//
//	Build output:
//	... output lines ...
func BuildError(step string, output []string, err error) error {
	outputStr := strings.Join(output, "\n")

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s build failed: %v", step, err)
	} else {
		prefix = fmt.Sprintf("%s build failed", step)
	}

	if outputStr != "" {
		return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	return fmt.Errorf("%s", prefix)
}

// MatchesExtension checks if a filename has any of the given extensions.
//
// Extensions may be given with or without the leading dot. The comparison
// is exact: ".C" (C++) and ".c" (C) are different source types.
func MatchesExtension(filename string, extensions ...string) bool {
	ext := filepath.Ext(filename)
	for _, want := range extensions {
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if ext == want {
			return true
		}
	}
	return false
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}
