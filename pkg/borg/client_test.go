// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/borgwrap/borgwrap/internal/environ"
	"github.com/borgwrap/borgwrap/internal/process"
	"github.com/borgwrap/borgwrap/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.FakeBorgMain() }

func newTestClient(t *testing.T, fake *testutil.FakeBorg, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithExecCommand(fake.CommandContext),
		WithEnvManager(environ.New(environ.WithBase(func() []string { return nil }))),
	}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_ListJSONIsBare(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{
		Stdout: `{"archives": [{"name": "a1"}], "repository": {"location": "/repo"}}` + "\n",
	})
	c := newTestClient(t, fake)

	res, err := c.List(context.Background(), "/repo", &ListOptions{JSON: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if want := []string{"list", "--json", "/repo"}; !slices.Equal(fake.LastArgs(), want) {
		t.Errorf("args = %v, want %v", fake.LastArgs(), want)
	}
	out, ok := res.Output.(map[string]any)
	if !ok {
		t.Fatalf("Output = %#v, want decoded object", res.Output)
	}
	archives := out["archives"].([]any)
	if len(archives) != 1 || archives[0].(map[string]any)["name"] != "a1" {
		t.Errorf("archives = %v", archives)
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v", res.Err())
	}
}

func TestClient_CreateListAndJSON(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{
		Stdout: `{"archive": {"name": "a1", "stats": {"nfiles": 2}}}`,
		Stderr: "A /data/a\nM /data/b\n",
	})
	c := newTestClient(t, fake)

	res, err := c.Create(context.Background(), "/repo::a1", &CreateOptions{List: true, JSON: true}, "/data")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	outs, ok := res.Output.(Outputs)
	if !ok {
		t.Fatalf("Output = %#v, want Outputs", res.Output)
	}
	if len(outs) != 2 {
		t.Errorf("Outputs has %d kinds, want 2", len(outs))
	}
	if outs[KindList] != "A /data/a\nM /data/b" {
		t.Errorf("list = %q", outs[KindList])
	}
	stats, ok := outs[KindStats].(map[string]any)
	if !ok || stats["archive"] == nil {
		t.Errorf("stats = %#v", outs[KindStats])
	}
	if want := []string{"create", "--list", "--json", "/repo::a1", "/data"}; !slices.Equal(fake.LastArgs(), want) {
		t.Errorf("args = %v, want %v", fake.LastArgs(), want)
	}
}

func TestClient_CreateStatsBlock(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stderr: statsStderr})
	c := newTestClient(t, fake)

	res, err := c.Create(context.Background(), "/repo::a1", &CreateOptions{List: true, Stats: true}, "/home/user")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	list, _ := res.Get(KindList)
	if list != "A /home/user/a.txt\nM /home/user/b.txt\ntrailing warning" {
		t.Errorf("list = %q", list)
	}
	stats, _ := res.Get(KindStats)
	if s, _ := stats.(string); !strings.Contains(s, "Archive name: a1") || strings.Contains(s, "a.txt") {
		t.Errorf("stats = %q", stats)
	}
}

func TestClient_ConfigChanges(t *testing.T) {
	fake := testutil.NewFakeBorg().
		On(testutil.ArgsContain("additional_free_space"), testutil.FakeResponse{Stdout: "2G\n"})
	c := newTestClient(t, fake)

	res, err := c.Config(context.Background(), "/repo", nil, Query("additional_free_space"), Set("append_only", "1"))
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}

	if want := []string{"2G"}; !reflect.DeepEqual(res.Output, want) {
		t.Errorf("Output = %#v, want %#v", res.Output, want)
	}
	invs := fake.Invocations()
	if len(invs) != 2 {
		t.Fatalf("expected one process per change, got %d", len(invs))
	}
	if want := []string{"config", "/repo", "append_only", "1"}; !slices.Equal(invs[1].Args, want) {
		t.Errorf("mutation args = %v, want %v", invs[1].Args, want)
	}
}

func TestClient_ConfigStopsAtFailure(t *testing.T) {
	fake := testutil.NewFakeBorg().
		On(testutil.ArgsContain("bogus"), testutil.FakeResponse{Stderr: "No option bogus\n", ExitCode: 2})
	c := newTestClient(t, fake)

	res, err := c.Config(context.Background(), "/repo", nil, Query("bogus"), Query("id"))
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	fake.AssertInvocationCount(t, 1)
	if res.ExitCode != 2 || res.Err() == nil {
		t.Errorf("ExitCode = %d, Err() = %v", res.ExitCode, res.Err())
	}
}

func TestClient_MissingBinary(t *testing.T) {
	c, err := New(WithBinary("/nonexistent/path/to/borg"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := c.Run(context.Background(), Request{Command: "list", Positionals: []string{"/repo"}})
	if !errors.Is(err, process.ErrLaunchFailed) {
		t.Fatalf("Run() error = %v, want ErrLaunchFailed", err)
	}
	if res != nil {
		t.Errorf("Run() result = %v, want nil on launch failure", res)
	}
	var launchErr *process.LaunchError
	if !errors.As(err, &launchErr) || !launchErr.NotFound() {
		t.Errorf("error = %v, want a not-found LaunchError", err)
	}
}

func TestClient_EmptyJSON(t *testing.T) {
	fake := testutil.NewFakeBorg()
	c := newTestClient(t, fake)

	res, err := c.List(context.Background(), "/repo", &ListOptions{JSONLines: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got, ok := res.Output.([]any); !ok || len(got) != 0 {
		t.Errorf("Output = %#v, want empty list", res.Output)
	}
}

func TestClient_NoOutputs(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeBorg())

	res, err := c.BreakLock(context.Background(), "/repo", nil)
	if err != nil {
		t.Fatalf("BreakLock() error = %v", err)
	}
	if res.Output != nil {
		t.Errorf("Output = %#v, want nil", res.Output)
	}

	res, err = c.Prune(context.Background(), "/repo", &PruneOptions{CommonOptions: CommonOptions{LogJSON: true}})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if got, ok := res.Output.([]any); !ok || len(got) != 0 {
		t.Errorf("Output = %#v, want empty list when JSON was requested", res.Output)
	}
}

func TestClient_ListIsIdempotent(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{
		Stdout: "{\"path\": \"a\"}\n{\"path\": \"b\"}\n",
	})
	c := newTestClient(t, fake)
	opts := &ListOptions{JSONLines: true}

	first, err := c.List(context.Background(), "/repo::a1", opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.List(context.Background(), "/repo::a1", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Output, second.Output) {
		t.Errorf("outputs differ: %#v vs %#v", first.Output, second.Output)
	}
	if !slices.Equal(fake.Invocations()[0].Args, fake.Invocations()[1].Args) {
		t.Error("argument vectors differ")
	}
}

func TestClient_AsyncDrainsMatchSync(t *testing.T) {
	resp := testutil.FakeResponse{
		Stdout: "archive-1\narchive-2\n",
		Stderr: "warning: lock\n",
		Sleep:  50 * time.Millisecond,
		Tail:   "archive-3",
	}
	fake := testutil.NewFakeBorg().Respond(resp)
	c := newTestClient(t, fake)
	req := Request{Command: "list", Positionals: []string{"/repo"}}

	sync, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	inv, err := c.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	var stdout, stderr []string
	for done := false; !done; {
		select {
		case <-inv.Done():
			done = true
		case <-time.After(10 * time.Millisecond):
		}
		stdout = append(stdout, inv.DrainStdout()...)
		stderr = append(stderr, inv.DrainStderr()...)
	}

	if got := strings.Join(stdout, ""); got != string(sync.Stdout) {
		t.Errorf("drained stdout = %q, sync = %q", got, sync.Stdout)
	}
	if got := strings.Join(stderr, ""); got != string(sync.Stderr) {
		t.Errorf("drained stderr = %q, sync = %q", got, sync.Stderr)
	}

	async, err := inv.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if !reflect.DeepEqual(async.Output, sync.Output) {
		t.Errorf("async Output = %#v, sync = %#v", async.Output, sync.Output)
	}
}

func TestInvocation_ResultWhileRunning(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Sleep: 10 * time.Second})
	c := newTestClient(t, fake, WithGracePeriod(2*time.Second))

	inv, err := c.Start(context.Background(), Request{Command: "check", Positionals: []string{"/repo"}})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := inv.Result(); !errors.Is(err, ErrStillRunning) {
		t.Errorf("Result() error = %v, want ErrStillRunning", err)
	}

	inv.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := inv.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !res.Incomplete {
		t.Error("cancelled invocation should be incomplete")
	}
}

func TestClient_MountForcesForeground(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Sleep: 10 * time.Second})
	c := newTestClient(t, fake, WithGracePeriod(2*time.Second))

	inv, err := c.Mount(context.Background(), "/repo::a1", "/mnt", &MountOptions{O: "allow_other"})
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	defer inv.Cancel()

	want := []string{"mount", "--foreground", "-o", "allow_other", "/repo::a1", "/mnt"}
	if !slices.Equal(fake.LastArgs(), want) {
		t.Errorf("args = %v, want %v", fake.LastArgs(), want)
	}
	if inv.Pid() == 0 {
		t.Error("Pid() = 0")
	}
}

func TestClient_Options(t *testing.T) {
	fake := testutil.NewFakeBorg()
	c := newTestClient(t, fake,
		WithOptions(map[string]any{"lock-wait": 30, "json": true}),
		WithDefaults("prune", map[string]any{"keep_daily": 7, "keep-weekly": 4}),
	)

	args, err := c.Args(Request{
		Command:     "prune",
		Positionals: []string{"/repo"},
		Options:     map[string]any{"keep-daily": 14, "list": true},
	})
	if err != nil {
		t.Fatalf("Args() error = %v", err)
	}
	want := []string{"borg", "prune", "--lock-wait", "30", "--list", "--keep-daily", "14", "--keep-weekly", "4", "/repo"}
	if !slices.Equal(args, want) {
		t.Errorf("Args() = %v, want %v", args, want)
	}
	fake.AssertInvocationCount(t, 0)
}

func TestClient_InitDefaultEncryption(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeBorg())

	args, err := c.Args(Request{Command: "init", Positionals: []string{"/repo"}})
	if err != nil {
		t.Fatalf("Args() error = %v", err)
	}
	if !slices.Equal(args, []string{"borg", "init", "--encryption", "repokey", "/repo"}) {
		t.Errorf("Args() = %v", args)
	}
}

func TestClient_InvalidOptions(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeBorg())

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown key", Request{Command: "info", Positionals: []string{"/r"}, Options: map[string]any{"keep-daily": 1}}},
		{"wrong struct", Request{Command: "info", Positionals: []string{"/r"}, Options: &ListOptions{}}},
		{"unsupported type", Request{Command: "info", Positionals: []string{"/r"}, Options: "json"}},
		{"validation", Request{Command: "init", Positionals: []string{"/r"}, Options: &InitOptions{Encryption: "rot13"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Run(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidOption) {
				t.Errorf("Run() error = %v, want ErrInvalidOption", err)
			}
		})
	}

	if _, err := New(WithDefaults("prune", map[string]any{"nope": true})); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("New() error = %v, want ErrInvalidOption", err)
	}
	if _, err := New(WithDefaults("frobnicate", nil)); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("New() error = %v, want ErrUnknownCommand", err)
	}
}

func TestClient_AsyncConfigChanges(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeBorg())

	_, err := c.Start(context.Background(), Request{
		Command:     "config",
		Positionals: []string{"/repo"},
		Changes:     []Change{Query("a"), Query("b")},
	})
	if !errors.Is(err, ErrAsyncConfigChanges) {
		t.Errorf("Start() error = %v, want ErrAsyncConfigChanges", err)
	}
}

func TestClient_Environment(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{
		EchoEnv: []string{"BORG_EXIT_CODES", "BORG_PASSPHRASE", "BORG_REPO"},
	})
	c := newTestClient(t, fake, WithEnvironment(map[string]string{"BORG_PASSPHRASE": "secret"}))

	res, err := c.BenchmarkCrud(context.Background(), "/repo", "/tmp", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "BORG_EXIT_CODES=modern\nBORG_PASSPHRASE=secret\nBORG_REPO!unset"
	if res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}

	c.UnsetEnv("BORG_PASSPHRASE")
	res, err = c.BenchmarkCrud(context.Background(), "/repo", "/tmp", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output.(string), "BORG_PASSPHRASE!unset") {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestClient_LogJSONDiagnostics(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{
		Stderr: `{"type": "log_message", "name": "borg.archiver", "levelname": "ERROR", "message": "Repository /repo does not exist."}` + "\n" +
			`{"type": "log_message", "name": "borg.archiver", "levelname": "INFO", "message": "hello"}` + "\n",
		ExitCode: 13,
	})
	c := newTestClient(t, fake, WithLogJSON(true))

	res, err := c.Info(context.Background(), "/repo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fake.HasArg("--log-json") {
		t.Errorf("args = %v, want --log-json", fake.LastArgs())
	}
	if len(res.Messages) != 1 {
		t.Fatalf("Messages = %+v, want the error only", res.Messages)
	}
	var exitErr *ExitStatusError
	if !errors.As(res.Err(), &exitErr) || exitErr.Message != "Repository /repo does not exist." {
		t.Errorf("Err() = %v", res.Err())
	}
}

func TestClient_ExportTarToStdout(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "ustar\x00data"})
	c := newTestClient(t, fake)

	res, err := c.ExportTar(context.Background(), "/repo::a1", "-", nil)
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := res.Output.([]byte); !ok || string(b) != "ustar\x00data" {
		t.Errorf("Output = %#v, want raw bytes", res.Output)
	}
}

func TestClient_ExportTarToStreams(t *testing.T) {
	fake := testutil.NewFakeBorg().Respond(testutil.FakeResponse{Stdout: "ustar\x00data\x00", Stderr: "etc/motd\n"})
	c := newTestClient(t, fake)

	var sink bytes.Buffer
	res, err := c.ExportTarTo(context.Background(), "/repo::a1", &sink, &ExportTarOptions{List: true}, "etc")
	if err != nil {
		t.Fatalf("ExportTarTo() error = %v", err)
	}
	if want := []string{"export-tar", "--list", "/repo::a1", "-", "etc"}; !slices.Equal(fake.LastArgs(), want) {
		t.Errorf("args = %v, want %v", fake.LastArgs(), want)
	}
	if sink.String() != "ustar\x00data\x00" {
		t.Errorf("streamed tar = %q", sink.String())
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Result.Stdout = %q, the stream must not be buffered", res.Stdout)
	}
	if res.Err() != nil || res.Incomplete {
		t.Errorf("Result = %+v", res)
	}
}

func TestClient_StreamRejectsConfigChanges(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeBorg())

	req := Request{Command: "config", Positionals: []string{"/repo"}, Changes: []Change{{Name: "append_only"}}}
	if _, err := c.Stream(context.Background(), req, io.Discard); !errors.Is(err, ErrStreamConfigChanges) {
		t.Errorf("Stream() error = %v, want ErrStreamConfigChanges", err)
	}
}

func TestClient_Launcher(t *testing.T) {
	fake := testutil.NewFakeBorg()
	c := newTestClient(t, fake, WithLauncher("docker", "exec", "-i", "borg-ct"), WithBinary("/usr/bin/borg"))

	if _, err := c.Umount(context.Background(), "/mnt", nil); err != nil {
		t.Fatal(err)
	}
	inv := fake.LastInvocation()
	if inv.Name != "docker" {
		t.Errorf("Name = %q, want docker", inv.Name)
	}
	if want := []string{"exec", "-i", "borg-ct", "/usr/bin/borg", "umount", "/mnt"}; !slices.Equal(inv.Args, want) {
		t.Errorf("Args = %v, want %v", inv.Args, want)
	}
}
