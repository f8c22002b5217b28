// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/borgwrap/borgwrap/internal/config"
	"github.com/borgwrap/borgwrap/pkg/borg"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App wires CLI services and shared dependencies. Every cobra handler
	// receives an App and builds its borg client through it.
	App struct {
		Config ConfigProvider
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		// clientOptions are appended after the configured ones.
		clientOptions []borg.ClientOption

		flags  globalFlags
		cfg    *config.Config
		logger *slog.Logger
		closer io.Closer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config        ConfigProvider
		Stdin         io.Reader
		Stdout        io.Writer
		Stderr        io.Writer
		ClientOptions []borg.ClientOption
	}

	globalFlags struct {
		config  string
		verbose bool
		borg    string
		envFile string
		logFile string
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:        deps.Config,
		stdin:         deps.Stdin,
		stdout:        deps.Stdout,
		stderr:        deps.Stderr,
		clientOptions: deps.ClientOptions,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration once per process and sets up logging.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.config})
	if err != nil {
		return nil, err
	}
	if !a.flags.verbose {
		a.flags.verbose = cfg.UI.Verbose
	}
	logger, closer := newLogger(a.stderr, cfg.Log, a.flags.logFile, a.flags.verbose)
	a.cfg, a.logger, a.closer = cfg, logger, closer
	return cfg, nil
}

// client builds a borg client from the configuration and the global flags.
func (a *App) client(ctx context.Context) (*borg.Client, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	if a.flags.borg != "" {
		opts = append(opts, borg.WithBinary(a.flags.borg))
	}
	if a.flags.envFile != "" {
		opts = append(opts, borg.WithEnvFile(a.flags.envFile))
	}
	opts = append(opts, borg.WithLogger(a.logger))
	opts = append(opts, a.clientOptions...)
	return borg.New(opts...)
}

// Close releases the log file, if one was opened.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
