// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/borgwrap/borgwrap/internal/process"
)

// Invocation is a borg process started with Client.Start.
type Invocation struct {
	// ID identifies the invocation in debug logs.
	ID string

	handle   *process.Handle
	prepared *prepared
	change   *Change
	logger   *slog.Logger

	once   sync.Once
	result *Result
}

// DrainStdout returns the stdout lines received since the previous call.
// Lines keep their terminators. It never blocks.
func (inv *Invocation) DrainStdout() []string {
	return inv.handle.Drain(process.Stdout)
}

// DrainStderr returns the stderr lines received since the previous call.
func (inv *Invocation) DrainStderr() []string {
	return inv.handle.Drain(process.Stderr)
}

// Wait blocks until borg exits or ctx is done. Giving up on ctx leaves borg
// running; use Cancel to stop it.
func (inv *Invocation) Wait(ctx context.Context) (*Result, error) {
	capture, err := inv.handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return inv.assemble(capture), nil
}

// Result returns the final Result, or ErrStillRunning while borg runs.
func (inv *Invocation) Result() (*Result, error) {
	capture, ok := inv.handle.Capture()
	if !ok {
		return nil, ErrStillRunning
	}
	return inv.assemble(capture), nil
}

// Cancel interrupts borg. Output received so far stays available and the
// Result is marked Incomplete.
func (inv *Invocation) Cancel() {
	inv.handle.Cancel()
}

// Done is closed once borg has exited and its output is drained.
func (inv *Invocation) Done() <-chan struct{} {
	return inv.handle.Done()
}

// Pid returns the process id of borg, or of the launcher when one is set.
func (inv *Invocation) Pid() int {
	return inv.handle.Pid()
}

// Args returns the full argument vector.
func (inv *Invocation) Args() []string {
	return inv.handle.Args()
}

// Command returns the name of the running command.
func (inv *Invocation) Command() string {
	return inv.prepared.spec.Name
}

func (inv *Invocation) assemble(capture *process.Capture) *Result {
	inv.once.Do(func() {
		if inv.change == nil {
			inv.result = inv.prepared.result(capture, inv.logger)
			return
		}

		res := inv.prepared.result(capture, inv.logger)
		answers := []string{}
		if !inv.change.IsMutation() {
			answers = append(answers, strings.TrimSpace(string(capture.Stdout)))
		}
		res.Output = answers
		inv.result = res
	})
	return inv.result
}
