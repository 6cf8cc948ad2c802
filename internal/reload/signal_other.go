//go:build !unix

package reload

import "os"

func terminate(p *os.Process) error {
	return p.Kill()
}
