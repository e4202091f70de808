//go:build !unix

package cudaext

import (
	"fmt"
	"os"
)

// checkExecutable verifies that path is a regular file. Execute permission
// is not modelled on this platform.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("is not a regular file")
	}
	return nil
}
