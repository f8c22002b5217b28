// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/borgwrap/borgwrap/pkg/types"
)

var (
	// ErrUnknownCommand is returned when no CommandSpec is registered under a name.
	ErrUnknownCommand = errors.New("unknown borg command")

	// ErrPositionals is returned when positionals do not fit the command's roles.
	ErrPositionals = errors.New("positional arguments do not match command")

	// ErrInvalidOption is the sentinel error wrapped by InvalidOptionError.
	ErrInvalidOption = errors.New("invalid borg option")

	// ErrProfileMismatch is the sentinel error wrapped by ProfileMismatchError.
	ErrProfileMismatch = errors.New("conflicting output options")

	// ErrStillRunning is returned by Invocation.Result before the process exits.
	ErrStillRunning = errors.New("borg is still running")

	// ErrAsyncConfigChanges is returned when config with several changes is
	// started asynchronously; each change needs its own borg process.
	ErrAsyncConfigChanges = errors.New("config with more than one change cannot run asynchronously")

	// ErrStreamConfigChanges is returned by Client.Stream for config
	// requests with changes, whose answers are read from stdout.
	ErrStreamConfigChanges = errors.New("config changes cannot be streamed")

	// ErrNonzeroExit is the sentinel error wrapped by ExitStatusError.
	ErrNonzeroExit = errors.New("borg exited with nonzero status")
)

type (
	// InvalidOptionError is returned when options cannot be decoded or fail validation.
	InvalidOptionError struct {
		Command string
		// Keys lists unknown map keys, if any.
		Keys []string
		// Reason describes a validation failure.
		Reason string
		Cause  error
	}

	// ProfileMismatchError is returned when the requested options would make
	// two output kinds compete for the same stream.
	ProfileMismatchError struct {
		Command string
		Kinds   []OutputKind
		Flags   []string
	}

	// ExitStatusError reports a nonzero borg exit status.
	ExitStatusError struct {
		Command  string
		ExitCode types.ExitCode
		// Message is the last error-level diagnostic, if borg emitted one.
		Message string
	}
)

// Error implements the error interface.
func (e *InvalidOptionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid options for borg %s", e.Command)
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, ": unknown option(s) %s", strings.Join(e.Keys, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns ErrInvalidOption and the cause, if any.
func (e *InvalidOptionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidOption, e.Cause}
	}
	return []error{ErrInvalidOption}
}

// Error implements the error interface.
func (e *ProfileMismatchError) Error() string {
	if len(e.Flags) > 0 {
		return fmt.Sprintf("borg %s: options %s cannot be combined", e.Command, strings.Join(prefixFlags(e.Flags), " and "))
	}
	kinds := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		kinds[i] = string(k)
	}
	return fmt.Sprintf("borg %s: outputs %s would share stdout", e.Command, strings.Join(kinds, ", "))
}

// Unwrap returns ErrProfileMismatch for use with errors.Is.
func (e *ProfileMismatchError) Unwrap() error { return ErrProfileMismatch }

// Error implements the error interface.
func (e *ExitStatusError) Error() string {
	msg := fmt.Sprintf("borg %s exited with status %d", e.Command, e.ExitCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns ErrNonzeroExit for use with errors.Is.
func (e *ExitStatusError) Unwrap() error { return ErrNonzeroExit }

func prefixFlags(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = flagToken(n)
	}
	return out
}
