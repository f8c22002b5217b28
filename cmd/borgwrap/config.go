// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/borgwrap/borgwrap/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `borgwrap config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage borgwrap configuration",
		Long: `Manage borgwrap configuration.

Configuration is read from config.cue (or config.toml) in:
  - Linux: ~/.config/borgwrap/
  - macOS: ~/Library/Application Support/borgwrap/
  - Windows: %APPDATA%\borgwrap\
or from the current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath("")
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if cfg.Path != "" {
		field(w, "Config file", cfg.Path)
	} else {
		field(w, "Config file", SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("borg"))
	field(w, "  binary", cfg.Borg.Binary)
	field(w, "  launcher", orNone(cfg.Borg.Launcher))
	field(w, "  log_level", cfg.Borg.LogLevel)
	field(w, "  log_json", fmt.Sprint(cfg.Borg.LogJSON))
	field(w, "  grace_period", orNone(cfg.Borg.GracePeriod))

	fmt.Fprintln(w)
	field(w, "env_file", orNone(cfg.EnvFile))
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("environment"))
	if len(cfg.Environment) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, k := range sortedNames(cfg.Environment) {
		// Values often hold secrets.
		fmt.Fprintf(w, "  %s=%s\n", k, SubtitleStyle.Render("***"))
	}

	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("defaults"))
	if len(cfg.Defaults) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, name := range sortedNames(cfg.Defaults) {
		fmt.Fprintf(w, "  %s: %v\n", name, cfg.Defaults[name])
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("ui"))
	field(w, "  color_scheme", string(cfg.UI.ColorScheme))
	field(w, "  verbose", fmt.Sprint(cfg.UI.Verbose))
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("log"))
	field(w, "  file", orNone(cfg.Log.File))
	return nil
}

func field(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), SuccessStyle.Render(value))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func sortedNames[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
