// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/borgwrap/borgwrap/pkg/borg"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultLogLevel is the lowest borg diagnostic level attached to results.
	DefaultLogLevel = "warning"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme selects the CLI color palette.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError collects every problem found in a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// BorgConfig selects and drives the borg executable.
	BorgConfig struct {
		Binary string `json:"binary" mapstructure:"binary"`
		// Launcher is a shell-words prefix such as "sudo -n -u backup".
		Launcher    string `json:"launcher" mapstructure:"launcher"`
		LogLevel    string `json:"log_level" mapstructure:"log_level"`
		LogJSON     bool   `json:"log_json" mapstructure:"log_json"`
		GracePeriod string `json:"grace_period" mapstructure:"grace_period"`
	}

	// UIConfig configures the CLI look.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}

	// LogConfig configures the optional rotating log file.
	LogConfig struct {
		File       string `json:"file" mapstructure:"file"`
		MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
		MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
		Compress   bool   `json:"compress" mapstructure:"compress"`
	}

	// Config is the complete borgwrap configuration.
	Config struct {
		Borg BorgConfig `json:"borg" mapstructure:"borg"`
		// Environment holds variables for every borg invocation.
		Environment map[string]string `json:"environment" mapstructure:"environment"`
		EnvFile     string            `json:"env_file" mapstructure:"env_file"`
		// Options apply to every command that accepts them.
		Options map[string]any `json:"options" mapstructure:"options"`
		// Defaults are per-command option maps keyed by command name.
		Defaults map[string]map[string]any `json:"defaults" mapstructure:"defaults"`
		UI       UIConfig                  `json:"ui" mapstructure:"ui"`
		Log      LogConfig                 `json:"log" mapstructure:"log"`

		// Path is the file the configuration was loaded from, if any.
		Path string `json:"-" mapstructure:"-"`
	}
)

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Validate returns nil if the color scheme is valid.
func (c ColorScheme) Validate() error {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: c}
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Borg: BorgConfig{
			Binary:   borg.DefaultBinary,
			LogLevel: DefaultLogLevel,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Validate checks the values CUE cannot: launcher syntax, grace period and
// the command names and option keys under defaults.
func (c *Config) Validate() error {
	var errs []error

	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, ok := borg.ParseLevel(c.Borg.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("borg.log_level: unknown level %q", c.Borg.LogLevel))
	}
	if _, err := c.LauncherArgv(); err != nil {
		errs = append(errs, fmt.Errorf("borg.launcher: %w", err))
	}
	if _, err := c.GracePeriod(); err != nil {
		errs = append(errs, fmt.Errorf("borg.grace_period: %w", err))
	}
	for name, values := range c.Defaults {
		spec, err := borg.Lookup(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("defaults: %w", err))
			continue
		}
		if err := borg.DecodeOptions(name, values, spec.NewOptions()); err != nil {
			errs = append(errs, fmt.Errorf("defaults: %w", err))
		}
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// GracePeriod returns the configured cancellation grace period, or zero when unset.
func (c *Config) GracePeriod() (time.Duration, error) {
	if c.Borg.GracePeriod == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Borg.GracePeriod)
}

// ClientOptions returns the borg client options the configuration selects.
func (c *Config) ClientOptions() ([]borg.ClientOption, error) {
	launcher, err := c.LauncherArgv()
	if err != nil {
		return nil, err
	}
	grace, err := c.GracePeriod()
	if err != nil {
		return nil, err
	}

	opts := []borg.ClientOption{
		borg.WithBinary(c.Borg.Binary),
		borg.WithLogLevel(c.Borg.LogLevel),
		borg.WithLogJSON(c.Borg.LogJSON),
		borg.WithOptions(c.Options),
	}
	if len(launcher) > 0 {
		opts = append(opts, borg.WithLauncher(launcher...))
	}
	if grace > 0 {
		opts = append(opts, borg.WithGracePeriod(grace))
	}
	if len(c.Environment) > 0 {
		opts = append(opts, borg.WithEnvironment(c.Environment))
	}
	if c.EnvFile != "" {
		opts = append(opts, borg.WithEnvFile(c.EnvFile))
	}
	for name, values := range c.Defaults {
		opts = append(opts, borg.WithDefaults(name, values))
	}
	return opts, nil
}
