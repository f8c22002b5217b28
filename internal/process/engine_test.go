// SPDX-License-Identifier: MPL-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/borgwrap/borgwrap/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.FakeBorgMain() }

func newFakeEngine(fake *testutil.FakeBorg, opts ...EngineOption) *Engine {
	return NewEngine("borg", append([]EngineOption{WithExecCommand(fake.CommandContext)}, opts...)...)
}

func TestEngine_Run(t *testing.T) {
	tests := []struct {
		name     string
		resp     testutil.FakeResponse
		wantCode int
	}{
		{"success", testutil.FakeResponse{Stdout: "archive-1\narchive-2\n"}, 0},
		{"warning", testutil.FakeResponse{Stdout: "partial\n", Stderr: "file changed\n", ExitCode: 1}, 1},
		{"error", testutil.FakeResponse{Stderr: "Repository does not exist.\n", ExitCode: 2}, 2},
		{"specific error", testutil.FakeResponse{ExitCode: 15}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeBorg().Respond(tt.resp)
			capture, err := newFakeEngine(fake).Run(context.Background(), []string{"list", "/repo"})
			if err != nil {
				t.Fatalf("Run() error = %v, nonzero exit must not be an error", err)
			}
			if int(capture.ExitCode) != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", capture.ExitCode, tt.wantCode)
			}
			if string(capture.Stdout) != tt.resp.Stdout {
				t.Errorf("Stdout = %q, want %q", capture.Stdout, tt.resp.Stdout)
			}
			if string(capture.Stderr) != tt.resp.Stderr {
				t.Errorf("Stderr = %q, want %q", capture.Stderr, tt.resp.Stderr)
			}
			if capture.Incomplete {
				t.Error("Incomplete should be false for a finished run")
			}
			if !fake.HasArgPair("list", "/repo") {
				t.Errorf("args = %v", fake.LastArgs())
			}
		})
	}
}

func TestEngine_Launcher(t *testing.T) {
	fake := testutil.NewFakeBorg()
	e := newFakeEngine(fake, WithLauncher("sudo", "-n", "-u", "backup"))

	if _, err := e.Run(context.Background(), []string{"info", "/repo"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	inv := fake.LastInvocation()
	if inv.Name != "sudo" {
		t.Errorf("Name = %q, want sudo", inv.Name)
	}
	want := []string{"-n", "-u", "backup", "borg", "info", "/repo"}
	if !slices.Equal(inv.Args, want) {
		t.Errorf("Args = %v, want %v", inv.Args, want)
	}
	if got := e.Argv([]string{"x"}); !slices.Equal(got, []string{"sudo", "-n", "-u", "backup", "borg", "x"}) {
		t.Errorf("Argv() = %v", got)
	}
}

func TestEngine_Env(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{EchoEnv: []string{"BORG_REPO", "BORG_EXIT_CODES"}})
	e := newFakeEngine(fake, WithEnv([]string{"BORG_REPO=/srv/repo", "BORG_EXIT_CODES=modern"}))

	capture, err := e.Run(context.Background(), []string{"info"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := string(capture.Stdout)
	for _, want := range []string{"BORG_REPO=/srv/repo\n", "BORG_EXIT_CODES=modern\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("child environment %q missing %q", out, want)
		}
	}
}

func TestEngine_LaunchFailure(t *testing.T) {
	tests := []struct {
		name   string
		binary string
	}{
		{"not on PATH", "borg-does-not-exist-7f3a"},
		{"missing path", "/nonexistent/dir/borg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture, err := NewEngine(tt.binary).Run(context.Background(), []string{"info"})
			if capture != nil {
				t.Error("no capture should be returned on launch failure")
			}
			if !errors.Is(err, ErrLaunchFailed) {
				t.Fatalf("error = %v, want ErrLaunchFailed", err)
			}
			var le *LaunchError
			if !errors.As(err, &le) {
				t.Fatalf("error should be a *LaunchError, got %T", err)
			}
			if le.Binary != tt.binary || !le.NotFound() {
				t.Errorf("LaunchError = %+v, NotFound() = %v", le, le.NotFound())
			}
			if !strings.Contains(err.Error(), tt.binary) {
				t.Errorf("Error() = %q should name the binary", err.Error())
			}
		})
	}

	t.Run("async", func(t *testing.T) {
		h, err := NewEngine("/nonexistent/dir/borg").Start(context.Background(), nil)
		if h != nil || !errors.Is(err, ErrLaunchFailed) {
			t.Errorf("Start() = %v, %v; want nil, ErrLaunchFailed", h, err)
		}
	})
}

func TestEngine_RunCancelled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGINT delivery is POSIX only")
	}

	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "started\n", Sleep: 30 * time.Second})
	e := newFakeEngine(fake, WithGracePeriod(2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	capture, err := e.Run(ctx, []string{"create", "/repo::a", "/data"})
	if err != nil {
		t.Fatalf("Run() error = %v, cancellation must not be an error", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run() took %v after cancellation", elapsed)
	}
	if !capture.Incomplete {
		t.Error("Incomplete should be true after cancellation")
	}
	if capture.ExitCode == 0 {
		t.Error("ExitCode should be nonzero for an interrupted process")
	}
	if string(capture.Stdout) != "started\n" {
		t.Errorf("partial Stdout = %q, want kept output", capture.Stdout)
	}
}

func TestEngine_RunInteractive(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pseudo terminals are POSIX only")
	}

	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "Enter passphrase: ", EchoStdin: true})
	e := newFakeEngine(fake)

	var screen strings.Builder
	capture, err := e.RunInteractive(context.Background(), []string{"key", "change-passphrase", "/repo"},
		strings.NewReader("secret\n"), &screen)
	if err != nil {
		t.Fatalf("RunInteractive() error = %v", err)
	}
	if capture.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", capture.ExitCode)
	}
	if !strings.Contains(string(capture.Stdout), "got: secret") {
		t.Errorf("Stdout = %q, want echoed input", capture.Stdout)
	}
	if screen.String() != string(capture.Stdout) {
		t.Error("terminal output and captured stdout differ")
	}
}

func TestEngine_RunStreaming(t *testing.T) {
	tar := "ustar\x00\x00data\x00\xff"
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: tar, Stderr: "exporting\n"})

	var sink bytes.Buffer
	capture, err := newFakeEngine(fake).RunStreaming(context.Background(), []string{"export-tar", "/repo::a1", "-"}, &sink)
	if err != nil {
		t.Fatalf("RunStreaming() error = %v", err)
	}
	if sink.String() != tar {
		t.Errorf("streamed stdout = %q, want %q", sink.String(), tar)
	}
	if len(capture.Stdout) != 0 {
		t.Errorf("Capture.Stdout = %q, want nothing kept", capture.Stdout)
	}
	if string(capture.Stderr) != "exporting\n" {
		t.Errorf("Capture.Stderr = %q", capture.Stderr)
	}
	if capture.Incomplete || capture.ExitCode != 0 {
		t.Errorf("capture = %+v, want a complete successful run", capture)
	}
}

type brokenWriter struct{}

var errDiskFull = errors.New("no space left on device")

func (brokenWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestEngine_RunStreamingWriteFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGINT delivery is POSIX only")
	}

	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "ustar", Sleep: 30 * time.Second})
	e := newFakeEngine(fake, WithGracePeriod(2*time.Second))

	start := time.Now()
	capture, err := e.RunStreaming(context.Background(), []string{"export-tar", "/repo::a1", "-"}, brokenWriter{})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("RunStreaming() error = %v, want the write error", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("RunStreaming() took %v, borg should be interrupted", elapsed)
	}
	if capture == nil || !capture.Incomplete {
		t.Errorf("capture = %+v, want an incomplete capture", capture)
	}
}

func TestEngine_CancelAfterOutputEnded(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGINT delivery is POSIX only")
	}

	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "done\n", Linger: 3 * time.Second})
	e := newFakeEngine(fake, WithGracePeriod(10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(time.Second)
		cancel()
	}()

	capture, err := e.Run(ctx, []string{"compact", "/repo"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if capture.Incomplete {
		t.Error("Incomplete should be false when cancel arrives after the output ended")
	}
	if capture.ExitCode != 0 || string(capture.Stdout) != "done\n" {
		t.Errorf("capture = %+v", capture)
	}
}

func TestEngine_RunInteractiveLeavesLaterInput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pseudo terminals are POSIX only")
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.DeferClose(t, r)()
	defer testutil.DeferClose(t, w)()

	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "no prompt\n"})
	if _, err := newFakeEngine(fake).RunInteractive(context.Background(), []string{"info", "/repo"}, r, io.Discard); err != nil {
		t.Fatalf("RunInteractive() error = %v", err)
	}

	if _, err := w.Write([]byte("next\n")); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("stdin read after RunInteractive: %v", err)
	}
	if string(buf[:n]) != "next\n" {
		t.Errorf("stdin read = %q, want the input typed after borg exited", buf[:n])
	}
}
