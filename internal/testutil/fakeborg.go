// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	helperEnvWant     = "GO_WANT_HELPER_PROCESS"
	helperEnvStdout   = "GO_HELPER_STDOUT"
	helperEnvStderr   = "GO_HELPER_STDERR"
	helperEnvExitCode = "GO_HELPER_EXIT_CODE"
	helperEnvSleep    = "GO_HELPER_SLEEP"
	helperEnvTail     = "GO_HELPER_TAIL"
	helperEnvEchoEnv  = "GO_HELPER_ECHO_ENV"
	helperEnvStdin    = "GO_HELPER_ECHO_STDIN"
	helperEnvLinger   = "GO_HELPER_LINGER"
)

type (
	// FakeResponse describes what one fake borg process does.
	FakeResponse struct {
		// Stdout and Stderr are written immediately after start.
		Stdout string
		Stderr string
		// Sleep pauses the process after the initial output.
		Sleep time.Duration
		// Tail is written to stdout after Sleep.
		Tail string
		// EchoEnv lists variables printed to stdout as NAME=value lines
		// (NAME!unset when absent) before exiting.
		EchoEnv []string
		// EchoStdin reads one line from stdin and prints "got: <line>".
		EchoStdin bool
		// Linger keeps the process alive after it closed stdout and stderr.
		// SIGINT is ignored meanwhile, so the process still exits with ExitCode.
		Linger   time.Duration
		ExitCode int
	}

	// FakeInvocation is a single recorded command construction.
	FakeInvocation struct {
		Name string
		Args []string
	}

	// FakeBorg replaces exec.CommandContext in tests. Each command it builds
	// re-runs the test binary, which must define
	//
	//	func TestHelperProcess(t *testing.T) { testutil.FakeBorgMain() }
	//
	// The response is chosen in the parent: the first matcher registered with
	// On that accepts the arguments wins, otherwise the default response is used.
	FakeBorg struct {
		mu          sync.Mutex
		fallback    FakeResponse
		matchers    []fakeMatcher
		invocations []FakeInvocation
	}

	fakeMatcher struct {
		match func(args []string) bool
		resp  FakeResponse
	}
)

// NewFakeBorg creates a fake that succeeds silently unless configured otherwise.
func NewFakeBorg() *FakeBorg {
	return &FakeBorg{}
}

// Respond sets the default response.
func (f *FakeBorg) Respond(resp FakeResponse) *FakeBorg {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = resp
	return f
}

// On registers a response used when match accepts the argument vector.
func (f *FakeBorg) On(match func(args []string) bool, resp FakeResponse) *FakeBorg {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchers = append(f.matchers, fakeMatcher{match: match, resp: resp})
	return f
}

// ArgsContain matches argument vectors that contain every given value.
func ArgsContain(values ...string) func(args []string) bool {
	return func(args []string) bool {
		for _, v := range values {
			if !slices.Contains(args, v) {
				return false
			}
		}
		return true
	}
}

// CommandContext has the signature of exec.CommandContext.
func (f *FakeBorg) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	f.mu.Lock()
	f.invocations = append(f.invocations, FakeInvocation{Name: name, Args: slices.Clone(args)})
	resp := f.fallback
	for _, m := range f.matchers {
		if m.match(args) {
			resp = m.resp
			break
		}
	}
	f.mu.Unlock()

	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, args...)
	//nolint:gosec // TestHelperProcess is a test-only pattern
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	// Output is base64 encoded because environment values cannot hold NUL.
	cmd.Env = []string{
		helperEnvWant + "=1",
		helperEnvStdout + "=" + base64.StdEncoding.EncodeToString([]byte(resp.Stdout)),
		helperEnvStderr + "=" + base64.StdEncoding.EncodeToString([]byte(resp.Stderr)),
		helperEnvExitCode + "=" + strconv.Itoa(resp.ExitCode),
		helperEnvSleep + "=" + resp.Sleep.String(),
		helperEnvTail + "=" + base64.StdEncoding.EncodeToString([]byte(resp.Tail)),
		helperEnvEchoEnv + "=" + strings.Join(resp.EchoEnv, ","),
		helperEnvStdin + "=" + strconv.FormatBool(resp.EchoStdin),
		helperEnvLinger + "=" + resp.Linger.String(),
	}
	return cmd
}

// Invocations returns a copy of every recorded invocation.
func (f *FakeBorg) Invocations() []FakeInvocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.invocations)
}

// LastInvocation returns the most recent invocation, or nil if none.
func (f *FakeBorg) LastInvocation() *FakeInvocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.invocations) == 0 {
		return nil
	}
	inv := f.invocations[len(f.invocations)-1]
	return &inv
}

// LastArgs returns the arguments from the most recent invocation.
func (f *FakeBorg) LastArgs() []string {
	if inv := f.LastInvocation(); inv != nil {
		return inv.Args
	}
	return nil
}

// HasArg checks if the last invocation contains a specific argument.
func (f *FakeBorg) HasArg(arg string) bool {
	return slices.Contains(f.LastArgs(), arg)
}

// HasArgPair checks if the last invocation contains a flag-value pair.
func (f *FakeBorg) HasArgPair(flag, value string) bool {
	args := f.LastArgs()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

// AssertInvocationCount verifies the number of command invocations.
func (f *FakeBorg) AssertInvocationCount(t testing.TB, expected int) {
	t.Helper()
	if got := len(f.Invocations()); got != expected {
		t.Errorf("expected %d invocations, got %d", expected, got)
	}
}

// FakeBorgMain runs the fake borg behaviour when the test binary was started
// by FakeBorg.CommandContext, and returns immediately otherwise.
func FakeBorgMain() {
	if os.Getenv(helperEnvWant) != "1" {
		return
	}

	linger, _ := time.ParseDuration(os.Getenv(helperEnvLinger))
	if linger > 0 {
		signal.Ignore(os.Interrupt)
	}

	_, _ = os.Stdout.Write(helperPayload(helperEnvStdout))
	_, _ = os.Stderr.Write(helperPayload(helperEnvStderr))

	if d, err := time.ParseDuration(os.Getenv(helperEnvSleep)); err == nil && d > 0 {
		time.Sleep(d)
	}

	_, _ = os.Stdout.Write(helperPayload(helperEnvTail))

	if names := os.Getenv(helperEnvEchoEnv); names != "" {
		for name := range strings.SplitSeq(names, ",") {
			if v, ok := os.LookupEnv(name); ok {
				fmt.Fprintf(os.Stdout, "%s=%s\n", name, v)
			} else {
				fmt.Fprintf(os.Stdout, "%s!unset\n", name)
			}
		}
	}

	if os.Getenv(helperEnvStdin) == "true" {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		fmt.Fprintf(os.Stdout, "got: %s\n", strings.TrimRight(line, "\r\n"))
	}

	if linger > 0 {
		_ = os.Stdout.Close()
		_ = os.Stderr.Close()
		time.Sleep(linger)
	}

	code, _ := strconv.Atoi(os.Getenv(helperEnvExitCode))
	os.Exit(code)
}

func helperPayload(name string) []byte {
	b, err := base64.StdEncoding.DecodeString(os.Getenv(name))
	if err != nil {
		return nil
	}
	return b
}
