//go:build !unix

package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
)

// execProcess runs the server as a child and waits for it, since this
// platform cannot replace the process image. It returns when the server exits.
func execProcess(path string, argv, env []string) error {
	cmd := exec.Command(path, argv[1:]...) //nolint:gosec // path is the journiv executable
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("server %s: %w", path, err)
	}
	return nil
}
