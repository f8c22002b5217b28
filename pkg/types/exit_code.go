// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

const (
	// ExitSuccess means borg finished without warnings or errors.
	ExitSuccess ExitCode = 0
	// ExitWarning is borg's generic warning code (legacy and modern).
	ExitWarning ExitCode = 1
	// ExitError is borg's generic error code (legacy and modern).
	ExitError ExitCode = 2

	// signalBase is added to the signal number when borg is killed by a signal.
	signalBase ExitCode = 128
)

type (
	// ExitCode represents a process exit status code.
	// With BORG_EXIT_CODES=modern, borg uses 0 for success, 1 and 100-127 for
	// warnings, 2 and 3-99 for errors, and 128+N when killed by signal N.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// IsWarning returns true for borg's warning codes (1 and 100-127).
func (c ExitCode) IsWarning() bool {
	return c == ExitWarning || (c >= 100 && c <= 127)
}

// IsError returns true for borg's error codes (2 and 3-99).
func (c ExitCode) IsError() bool {
	return c == ExitError || (c >= 3 && c <= 99)
}

// Signal returns the signal number that terminated borg, if any.
func (c ExitCode) Signal() (int, bool) {
	if c > signalBase && c <= 255 {
		return int(c - signalBase), true
	}
	return 0, false
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
