//go:build unix

package bootstrap

import (
	"fmt"
	"syscall"
)

// execProcess replaces the current process image. It only returns on failure.
func execProcess(path string, argv, env []string) error {
	if err := syscall.Exec(path, argv, env); err != nil { //nolint:gosec // path is the journiv executable
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
