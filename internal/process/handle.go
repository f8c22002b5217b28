// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handle is the live view of a process started with Engine.Start.
//
// Two reader goroutines fill the stdout and stderr StreamBuffers while a third
// waits for both readers and then for the process. The Capture becomes
// available once all three have finished.
type Handle struct {
	engine *Engine
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	start  time.Time

	stdout StreamBuffer
	stderr StreamBuffer

	done    chan struct{}
	capture *Capture
}

func newHandle(e *Engine, ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, stdout, stderr io.Reader) *Handle {
	h := &Handle{
		engine: e,
		cmd:    cmd,
		ctx:    ctx,
		cancel: cancel,
		start:  time.Now(),
		done:   make(chan struct{}),
	}
	go h.run(stdout, stderr)
	return h
}

func (h *Handle) run(stdout, stderr io.Reader) {
	defer close(h.done)
	defer h.cancel()

	var g errgroup.Group
	g.Go(func() error {
		_, err := h.stdout.ReadFrom(stdout)
		return err
	})
	g.Go(func() error {
		_, err := h.stderr.ReadFrom(stderr)
		return err
	})
	readErr := g.Wait()
	if readErr != nil {
		h.engine.logger.Debug("output reader stopped early", "pid", h.Pid(), "error", readErr)
	}
	cancelled := h.ctx.Err() != nil

	waitErr := h.cmd.Wait()
	capture := &Capture{
		Args:     h.cmd.Args,
		Stdout:   h.stdout.Bytes(),
		Stderr:   h.stderr.Bytes(),
		Duration: time.Since(h.start),
	}
	h.engine.finish(cancelled, h.cmd, waitErr, capture)
	h.capture = capture
}

// Drain returns the lines received on stream since the previous Drain of
// that stream. It never blocks.
func (h *Handle) Drain(stream Stream) []string {
	return h.Buffer(stream).Drain()
}

// Buffer returns the line buffer backing stream.
func (h *Handle) Buffer(stream Stream) *StreamBuffer {
	if stream == Stderr {
		return &h.stderr
	}
	return &h.stdout
}

// Wait blocks until the process has exited and both streams are drained,
// or until ctx is done. Giving up on ctx does not stop the process.
func (h *Handle) Wait(ctx context.Context) (*Capture, error) {
	select {
	case <-h.done:
		return h.capture, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Capture returns the final aggregate, or false while the process is running.
func (h *Handle) Capture() (*Capture, bool) {
	select {
	case <-h.done:
		return h.capture, true
	default:
		return nil, false
	}
}

// Done is closed once the Capture is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel interrupts the process. It is safe to call more than once and after exit.
func (h *Handle) Cancel() {
	h.cancel()
}

// Pid returns the operating system process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Args returns the full argument vector, launcher and binary included.
func (h *Handle) Args() []string {
	return h.cmd.Args
}
