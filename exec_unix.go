//go:build unix

package cudaext

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// checkExecutable verifies that path is a regular file the current user may execute.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("is not a regular file")
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("is not executable: %w", err)
	}
	return nil
}
