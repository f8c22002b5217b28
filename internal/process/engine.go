// SPDX-License-Identifier: MPL-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/borgwrap/borgwrap/pkg/types"

	"github.com/muesli/cancelreader"
	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod is how long a cancelled process may take to exit after
// SIGINT before it is killed.
const DefaultGracePeriod = 10 * time.Second

// ErrLaunchFailed is the sentinel error wrapped by LaunchError.
var ErrLaunchFailed = errors.New("launch failed")

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// EngineOption configures an Engine.
	EngineOption func(*Engine)

	// Engine starts one process per call. It holds no per-invocation state and
	// may be shared between goroutines.
	Engine struct {
		binary      string
		launcher    []string
		env         []string
		dir         string
		grace       time.Duration
		execCommand ExecCommandFunc
		logger      *slog.Logger
	}

	// Capture is the final aggregate of one process run.
	Capture struct {
		// Args is the full argument vector, launcher and binary included.
		Args       []string
		Stdout     []byte
		Stderr     []byte
		ExitCode   types.ExitCode
		Incomplete bool
		Duration   time.Duration
	}

	// LaunchError is returned when the process could not be started at all.
	LaunchError struct {
		Binary string
		Cause  error
	}
)

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Binary, e.Cause)
}

// Unwrap returns both ErrLaunchFailed and the underlying cause.
func (e *LaunchError) Unwrap() []error { return []error{ErrLaunchFailed, e.Cause} }

// NotFound reports whether the launch failed because the executable does not exist.
func (e *LaunchError) NotFound() bool {
	return errors.Is(e.Cause, exec.ErrNotFound) || errors.Is(e.Cause, os.ErrNotExist)
}

// --- Option Functions ---

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) EngineOption {
	return func(e *Engine) {
		e.execCommand = fn
	}
}

// WithLauncher prefixes every argument vector with argv, e.g. ["sudo", "-n"].
func WithLauncher(argv ...string) EngineOption {
	return func(e *Engine) {
		e.launcher = append([]string(nil), argv...)
	}
}

// WithEnv sets the complete environment of the child process.
// A nil env inherits the parent environment.
func WithEnv(env []string) EngineOption {
	return func(e *Engine) {
		e.env = env
	}
}

// WithDir sets the working directory of the child process.
func WithDir(dir string) EngineOption {
	return func(e *Engine) {
		e.dir = dir
	}
}

// WithGracePeriod sets the delay between SIGINT and SIGKILL on cancellation.
func WithGracePeriod(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.grace = d
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// --- Constructor ---

// NewEngine creates an engine that runs binary.
func NewEngine(binary string, opts ...EngineOption) *Engine {
	e := &Engine{
		binary:      binary,
		grace:       DefaultGracePeriod,
		execCommand: exec.CommandContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Binary returns the executable name or path.
func (e *Engine) Binary() string {
	return e.binary
}

// Argv returns the full argument vector for args, launcher and binary included.
func (e *Engine) Argv(args []string) []string {
	argv := make([]string, 0, len(e.launcher)+1+len(args))
	argv = append(argv, e.launcher...)
	argv = append(argv, e.binary)
	return append(argv, args...)
}

// --- Command Execution ---

// Run executes the binary with args and waits for it to exit.
// A nonzero exit code is recorded in the Capture, not returned as error.
// When ctx is cancelled the process receives SIGINT and the Capture is
// marked incomplete.
func (e *Engine) Run(ctx context.Context, args []string) (*Capture, error) {
	return e.run(ctx, args, nil)
}

// RunStreaming is Run with stdout copied to w as it arrives instead of
// being kept in the Capture. When a write to w fails the process is
// interrupted and the Capture is returned together with the write error.
func (e *Engine) RunStreaming(ctx context.Context, args []string, w io.Writer) (*Capture, error) {
	if w == nil {
		return nil, errors.New("nil stdout writer")
	}
	return e.run(ctx, args, w)
}

func (e *Engine) run(ctx context.Context, args []string, w io.Writer) (*Capture, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := e.createCommand(runCtx, args)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, e.launchError(err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, e.launchError(err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, e.launchError(err)
	}
	e.logger.Debug("process started", "pid", cmd.Process.Pid, "argv", strings.Join(cmd.Args, " "))

	var stdout, stderr bytes.Buffer
	if w == nil {
		w = &stdout
	}
	var writeErr error
	var g errgroup.Group
	g.Go(func() error {
		if _, err := io.Copy(w, stdoutPipe); err != nil {
			writeErr = err
			cancel()
			_ = stdoutPipe.Close()
		}
		return nil
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Debug("output reader stopped early", "pid", cmd.Process.Pid, "error", err)
	}
	cancelled := runCtx.Err() != nil

	waitErr := cmd.Wait()
	capture := &Capture{
		Args:     cmd.Args,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	e.finish(cancelled, cmd, waitErr, capture)
	if writeErr != nil {
		return capture, fmt.Errorf("write stdout: %w", writeErr)
	}
	return capture, nil
}

// Start launches the binary and returns immediately with a live Handle.
// Output is split into lines as it arrives; see Handle.Drain.
func (e *Engine) Start(ctx context.Context, args []string) (*Handle, error) {
	runCtx, cancel := context.WithCancel(ctx)

	cmd := e.createCommand(runCtx, args)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, e.launchError(err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, e.launchError(err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, e.launchError(err)
	}
	e.logger.Debug("process started", "pid", cmd.Process.Pid, "argv", strings.Join(cmd.Args, " "))

	h := newHandle(e, runCtx, cancel, cmd, stdoutPipe, stderrPipe)
	return h, nil
}

// RunInteractive runs the binary attached to a pseudo terminal. Bytes read
// from stdin are forwarded to the terminal and everything the process prints
// is copied to stdout and kept as the Capture's Stdout.
func (e *Engine) RunInteractive(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) (*Capture, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var input cancelreader.CancelReader
	if stdin != nil {
		input = cancelableInput(stdin)
		defer func() { _ = input.Close() }()
	}

	cmd := e.createCommand(runCtx, args)

	start := time.Now()
	ptmx, err := startPTY(cmd)
	if err != nil {
		return nil, e.launchError(err)
	}
	defer func() { _ = ptmx.Close() }()
	e.logger.Debug("process started on pty", "pid", cmd.Process.Pid, "argv", strings.Join(cmd.Args, " "))

	forwarded := make(chan struct{})
	if input != nil {
		go func() {
			defer close(forwarded)
			_, _ = io.Copy(ptmx, input)
		}()
	} else {
		close(forwarded)
	}

	var captured bytes.Buffer
	out := io.Writer(&captured)
	if stdout != nil {
		out = io.MultiWriter(&captured, stdout)
	}
	// Reading the pty master fails with EIO once the child side closes.
	_, _ = io.Copy(out, ptmx)
	cancelled := runCtx.Err() != nil

	// A cancelled read consumes nothing, so input typed after borg exits
	// stays with the caller. Readers that cannot be interrupted are left
	// to return on their own.
	if input != nil && input.Cancel() {
		<-forwarded
	}

	waitErr := cmd.Wait()
	capture := &Capture{
		Args:     cmd.Args,
		Stdout:   captured.Bytes(),
		Duration: time.Since(start),
	}
	e.finish(cancelled, cmd, waitErr, capture)
	return capture, nil
}

// cancelableInput wraps stdin so that forwarding it can be stopped without
// losing bytes. Files the poller cannot watch, such as regular files, get a
// reader that only stops between reads.
func cancelableInput(stdin io.Reader) cancelreader.CancelReader {
	if cr, err := cancelreader.NewReader(stdin); err == nil {
		return cr
	}
	cr, _ := cancelreader.NewReader(struct{ io.Reader }{stdin})
	return cr
}

// createCommand builds the exec.Cmd for args with launcher, environment and
// cancellation behaviour applied.
func (e *Engine) createCommand(ctx context.Context, args []string) *exec.Cmd {
	argv := e.Argv(args)
	cmd := e.execCommand(ctx, argv[0], argv[1:]...)
	if e.env != nil {
		// Keep whatever the exec function already put there.
		cmd.Env = append(cmd.Env, e.env...)
	}
	if e.dir != "" {
		cmd.Dir = e.dir
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.grace
	return cmd
}

// finish records exit status and completeness once cmd.Wait has returned.
// cancelled tells whether the run was cancelled before its output ended; a
// cancel that arrives after that does not make the capture incomplete.
func (e *Engine) finish(cancelled bool, cmd *exec.Cmd, waitErr error, capture *Capture) {
	capture.Incomplete = cancelled
	if cmd.ProcessState != nil {
		capture.ExitCode = exitCodeOf(cmd.ProcessState)
	} else {
		capture.ExitCode = types.ExitError
		capture.Incomplete = true
	}

	attrs := []any{
		"pid", cmd.Process.Pid,
		"exit_code", int(capture.ExitCode),
		"duration", capture.Duration,
	}
	if capture.Incomplete {
		attrs = append(attrs, "incomplete", true)
	}
	if waitErr != nil && !isExitError(waitErr) {
		attrs = append(attrs, "error", waitErr)
	}
	e.logger.Debug("process finished", attrs...)
}

func (e *Engine) launchError(err error) error {
	le := &LaunchError{Binary: e.binary, Cause: err}
	e.logger.Debug("process launch failed", "binary", e.binary, "error", err)
	return le
}

// exitCodeOf maps a process state to an exit code, reporting death by
// signal N as 128+N like a POSIX shell.
func exitCodeOf(state *os.ProcessState) types.ExitCode {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return types.ExitCode(128 + int(ws.Signal()))
	}
	return types.ExitCode(state.ExitCode())
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
