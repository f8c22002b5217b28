// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package process

import (
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// startPTY starts cmd with its standard streams attached to a new pseudo terminal.
func startPTY(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}
