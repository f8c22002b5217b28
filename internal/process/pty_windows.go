// SPDX-License-Identifier: MPL-2.0

//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

var errNoPTY = errors.New("pseudo terminals are not supported on windows")

// startPTY is unavailable on Windows; interactive borg prompts need a POSIX tty.
func startPTY(_ *exec.Cmd) (*os.File, error) {
	return nil, errNoPTY
}
