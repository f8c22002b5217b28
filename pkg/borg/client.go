// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/borgwrap/borgwrap/internal/environ"
	"github.com/borgwrap/borgwrap/internal/process"

	"github.com/google/uuid"
)

// DefaultBinary is the borg executable looked up in PATH.
const DefaultBinary = "borg"

type (
	// ClientOption configures a Client.
	ClientOption func(*Client)

	// Client runs borg commands. It holds configuration only; every call
	// starts its own process, so a Client may be shared between goroutines.
	Client struct {
		binary      string
		launcher    []string
		dir         string
		execCommand process.ExecCommandFunc
		grace       time.Duration
		logger      *slog.Logger
		logLevel    int
		logJSON     bool

		env      *environ.Manager
		envFile  string
		envVars  map[string]string
		shared   map[string]any
		defaults map[string]map[string]any
	}

	// Request describes one invocation.
	Request struct {
		Command     string
		Positionals []string
		// Options is nil, a pointer to the command's options struct, or a
		// map decoded strictly into that struct.
		Options any
		// Changes are the key accesses of a config request.
		Changes []Change
	}

	// prepared is a request after option filtering and output resolution.
	prepared struct {
		id          string
		spec        *CommandSpec
		opts        Options
		values      []OptionValue
		input       ProfileInput
		active      []ActiveOutput
		positionals []string
		args        []string
		threshold   int
	}
)

// WithBinary sets the borg executable name or path.
func WithBinary(binary string) ClientOption {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithLauncher prefixes every argument vector, e.g. "sudo", "-n".
func WithLauncher(argv ...string) ClientOption {
	return func(c *Client) {
		c.launcher = append([]string(nil), argv...)
	}
}

// WithDir sets the working directory of borg.
func WithDir(dir string) ClientOption {
	return func(c *Client) {
		c.dir = dir
	}
}

// WithExecCommand replaces exec.CommandContext, for tests.
func WithExecCommand(fn process.ExecCommandFunc) ClientOption {
	return func(c *Client) {
		c.execCommand = fn
	}
}

// WithEnvironment adds variables to the environment of every invocation.
func WithEnvironment(vars map[string]string) ClientOption {
	return func(c *Client) {
		if c.envVars == nil {
			c.envVars = make(map[string]string, len(vars))
		}
		for k, v := range vars {
			c.envVars[k] = v
		}
	}
}

// WithEnvFile loads variables from a dotenv file when the client is created.
func WithEnvFile(path string) ClientOption {
	return func(c *Client) {
		c.envFile = path
	}
}

// WithEnvManager replaces the environment manager.
func WithEnvManager(m *environ.Manager) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.env = m
		}
	}
}

// WithOptions sets options applied to every command. Only keys of the option
// categories a command accepts are used; the rest are ignored.
func WithOptions(values map[string]any) ClientOption {
	return func(c *Client) {
		c.shared = values
	}
}

// WithDefaults sets default options for one command. Unknown keys make New fail.
func WithDefaults(command string, values map[string]any) ClientOption {
	return func(c *Client) {
		if c.defaults == nil {
			c.defaults = make(map[string]map[string]any)
		}
		c.defaults[command] = values
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogLevel sets the lowest level of borg diagnostics attached to a
// Result, unless the request's own options select a level.
func WithLogLevel(level string) ClientOption {
	return func(c *Client) {
		if rank, ok := ParseLevel(level); ok {
			c.logLevel = rank
		}
	}
}

// WithLogJSON adds --log-json to every invocation.
func WithLogJSON(enabled bool) ClientOption {
	return func(c *Client) {
		c.logJSON = enabled
	}
}

// WithGracePeriod sets how long a cancelled borg may take to exit.
func WithGracePeriod(d time.Duration) ClientOption {
	return func(c *Client) {
		c.grace = d
	}
}

// New creates a Client. It fails when a command default names an unknown
// command or option, or when the env file cannot be loaded.
func New(opts ...ClientOption) (*Client, error) {
	c := &Client{
		binary:   DefaultBinary,
		grace:    process.DefaultGracePeriod,
		logger:   slog.Default(),
		logLevel: levelRank["WARNING"],
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.env == nil {
		c.env = environ.New()
	}

	if c.envFile != "" || len(c.envVars) > 0 {
		if err := c.env.Set(c.envFile, c.envVars); err != nil {
			return nil, err
		}
	}

	for name, values := range c.defaults {
		spec, err := Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
		if err := DecodeOptions(name, values, spec.NewOptions()); err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
	}
	return c, nil
}

// Binary returns the borg executable name or path.
func (c *Client) Binary() string {
	return c.binary
}

// SetEnv loads variables from a dotenv file and from vars. With neither it
// loads ./.env if present.
func (c *Client) SetEnv(file string, vars map[string]string) error {
	return c.env.Set(file, vars)
}

// UnsetEnv removes names from the environment, or the keys of the last
// SetEnv when names is empty.
func (c *Client) UnsetEnv(names ...string) {
	c.env.Unset(names...)
}

// Environ returns the environment borg would run with.
func (c *Client) Environ() []string {
	return c.env.Environ()
}

// Args returns the argument vector req would run with, without launching borg.
func (c *Client) Args(req Request) ([]string, error) {
	p, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	return c.engine().Argv(p.args), nil
}

// Run executes req and waits for borg to exit. A nonzero exit status is
// reported through Result.Err, not as an error. Cancelling ctx interrupts
// borg and returns a Result marked Incomplete.
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	p, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	if len(req.Changes) > 0 {
		return c.runChanges(ctx, p, req.Changes)
	}

	engine := c.engine()
	c.logInvocation(p, engine.Argv(p.args))
	capture, err := engine.Run(ctx, p.args)
	if err != nil {
		return nil, err
	}
	return p.result(capture, c.logger), nil
}

// Stream is Run with borg's stdout written to stdout as it arrives instead
// of being held in memory, for extract --stdout and export-tar to "-". The
// Result's Stdout is empty and so are the outputs borg writes to stdout.
// When a write to stdout fails borg is interrupted and the Result is
// returned together with the error.
func (c *Client) Stream(ctx context.Context, req Request, stdout io.Writer) (*Result, error) {
	if len(req.Changes) > 0 {
		return nil, ErrStreamConfigChanges
	}
	p, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	engine := c.engine()
	c.logInvocation(p, engine.Argv(p.args))
	capture, err := engine.RunStreaming(ctx, p.args, stdout)
	if capture == nil {
		return nil, err
	}
	return p.result(capture, c.logger), err
}

// Start launches req and returns while borg is running.
func (c *Client) Start(ctx context.Context, req Request) (*Invocation, error) {
	if len(req.Changes) > 1 {
		return nil, ErrAsyncConfigChanges
	}
	p, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	if len(req.Changes) == 1 {
		if p.args, err = p.changeArgs(req.Changes[0]); err != nil {
			return nil, err
		}
	}

	engine := c.engine()
	c.logInvocation(p, engine.Argv(p.args))
	handle, err := engine.Start(ctx, p.args)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{ID: p.id, handle: handle, prepared: p, logger: c.logger}
	if len(req.Changes) == 1 {
		inv.change = &req.Changes[0]
	}
	return inv, nil
}

// Interactive runs req on a pseudo terminal, forwarding stdin and copying
// borg's terminal output to stdout. Use it for prompts borg only shows on a
// terminal. The terminal output is the Result's Stdout.
func (c *Client) Interactive(ctx context.Context, req Request, stdin io.Reader, stdout io.Writer) (*Result, error) {
	p, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	engine := c.engine()
	c.logInvocation(p, engine.Argv(p.args))
	capture, err := engine.RunInteractive(ctx, p.args, stdin, stdout)
	if err != nil {
		return nil, err
	}
	return p.result(capture, c.logger), nil
}

func (c *Client) engine() *process.Engine {
	opts := []process.EngineOption{
		process.WithEnv(c.env.Environ()),
		process.WithGracePeriod(c.grace),
		process.WithLogger(c.logger),
	}
	if c.execCommand != nil {
		opts = append(opts, process.WithExecCommand(c.execCommand))
	}
	if len(c.launcher) > 0 {
		opts = append(opts, process.WithLauncher(c.launcher...))
	}
	if c.dir != "" {
		opts = append(opts, process.WithDir(c.dir))
	}
	return process.NewEngine(c.binary, opts...)
}

func (c *Client) logInvocation(p *prepared, argv []string) {
	c.logger.Debug("borg invocation", "id", p.id, "command", p.spec.Name, "argv", strings.Join(argv, " "))
}

// prepare filters the options of req, resolves its outputs and builds the
// argument vector.
func (c *Client) prepare(req Request) (*prepared, error) {
	spec, err := Lookup(req.Command)
	if err != nil {
		return nil, err
	}
	opts, err := c.filterOptions(spec, req.Options)
	if err != nil {
		return nil, err
	}

	values := EncodeOptions(opts)
	input := ProfileInput{
		Flags:       make(map[string]bool),
		Positionals: req.Positionals,
		Changes:     len(req.Changes),
	}
	for _, v := range values {
		if v.Flag {
			input.Flags[v.Name] = true
		}
	}

	active, err := spec.Resolve(input)
	if err != nil {
		return nil, err
	}
	if len(req.Changes) > 0 {
		active = onlyKind(active, KindChanges)
	}

	args, err := BuildArgs(spec, req.Positionals, values)
	if err != nil {
		return nil, err
	}

	return &prepared{
		id:          uuid.NewString(),
		spec:        spec,
		opts:        opts,
		values:      values,
		input:       input,
		active:      active,
		positionals: req.Positionals,
		args:        args,
		threshold:   logThreshold(opts.Common(), c.logLevel),
	}, nil
}

// filterOptions layers the shared options, the command defaults and the
// request options, then validates the result.
func (c *Client) filterOptions(spec *CommandSpec, reqOpts any) (Options, error) {
	opts := spec.NewOptions()
	if err := applySharedOptions(spec.Name, c.shared, opts); err != nil {
		return nil, err
	}
	if err := DecodeOptions(spec.Name, c.defaults[spec.Name], opts); err != nil {
		return nil, err
	}

	switch v := reqOpts.(type) {
	case nil:
	case map[string]any:
		if err := DecodeOptions(spec.Name, v, opts); err != nil {
			return nil, err
		}
	case Options:
		if reflect.TypeOf(v) != reflect.TypeOf(opts) {
			return nil, &InvalidOptionError{
				Command: spec.Name,
				Reason:  fmt.Sprintf("expected %T, got %T", opts, v),
			}
		}
		if !reflect.ValueOf(v).IsNil() {
			overlayOptions(opts, v)
		}
	default:
		return nil, &InvalidOptionError{
			Command: spec.Name,
			Reason:  fmt.Sprintf("unsupported options type %T", reqOpts),
		}
	}

	if c.logJSON {
		opts.Common().LogJSON = true
	}
	if d, ok := opts.(defaulter); ok {
		d.applyDefaults()
	}
	if err := opts.Validate(); err != nil {
		return nil, &InvalidOptionError{Command: spec.Name, Reason: err.Error()}
	}
	return opts, nil
}

// runChanges runs config once per change and collects the query answers.
// It stops at the first nonzero exit status.
func (c *Client) runChanges(ctx context.Context, p *prepared, changes []Change) (*Result, error) {
	engine := c.engine()
	res := &Result{Command: p.spec.Name, Kinds: activeKinds(p.active)}
	answers := []string{}

	for _, change := range changes {
		args, err := p.changeArgs(change)
		if err != nil {
			return nil, err
		}
		c.logInvocation(p, engine.Argv(args))
		capture, err := engine.Run(ctx, args)
		if err != nil {
			return nil, err
		}

		res.Args = capture.Args
		res.ExitCode = capture.ExitCode
		res.Stdout = append(res.Stdout, capture.Stdout...)
		res.Stderr = append(res.Stderr, capture.Stderr...)
		res.Duration += capture.Duration
		res.Incomplete = res.Incomplete || capture.Incomplete
		if p.input.Flags["log-json"] {
			res.Messages = append(res.Messages, diagnostics(parseLogRecords(string(capture.Stderr)), p.threshold)...)
		}

		if !change.IsMutation() {
			answers = append(answers, strings.TrimSpace(string(capture.Stdout)))
		}
		if !capture.ExitCode.IsSuccess() || capture.Incomplete {
			break
		}
	}

	res.Output = assemble(res.Kinds, Outputs{KindChanges: answers}, false)
	return res, nil
}

// changeArgs builds the argument vector for one config change.
func (p *prepared) changeArgs(change Change) ([]string, error) {
	positionals := append(append([]string(nil), p.positionals...), change.Args()...)
	return BuildArgs(p.spec, positionals, p.values)
}

// result demultiplexes capture into a Result.
func (p *prepared) result(capture *process.Capture, logger *slog.Logger) *Result {
	res := &Result{
		Command:    p.spec.Name,
		Args:       capture.Args,
		Kinds:      activeKinds(p.active),
		ExitCode:   capture.ExitCode,
		Stdout:     capture.Stdout,
		Stderr:     capture.Stderr,
		Incomplete: capture.Incomplete,
		Duration:   capture.Duration,
	}

	d := newDemuxer(capture.Stdout, capture.Stderr, logger)
	values := make(map[OutputKind]any, len(p.active))
	for _, out := range p.active {
		values[out.Kind] = d.value(out)
	}
	res.Output = assemble(res.Kinds, values, expectsJSON(p.input))

	if p.input.Flags["log-json"] {
		res.Messages = diagnostics(d.logRecords(), p.threshold)
	}
	return res
}

func activeKinds(active []ActiveOutput) []OutputKind {
	kinds := make([]OutputKind, 0, len(active))
	for _, a := range active {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func onlyKind(active []ActiveOutput, kind OutputKind) []ActiveOutput {
	for _, a := range active {
		if a.Kind == kind {
			return []ActiveOutput{a}
		}
	}
	return nil
}
