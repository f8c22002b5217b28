// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/borgwrap/borgwrap/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the borgwrap command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "borgwrap",
		Short: "Run borg backup commands with structured results",
		Long: TitleStyle.Render("borgwrap") + SubtitleStyle.Render(" - run borg with structured results") + `

borgwrap builds borg command lines from typed options, runs borg as a
child process and splits what it prints into named outputs such as the
file list, the statistics block or the JSON report.

` + SubtitleStyle.Render("Examples:") + `
  borgwrap run list /srv/repo -o json
  borgwrap run create /srv/repo::{now} ~/docs -o stats -o exclude=*.tmp
  borgwrap run config /srv/repo --change append_only --change max_segment_size=1GB
  borgwrap watch check /srv/repo -o progress
  borgwrap export /srv/repo::daily backup.tar.zst etc
  borgwrap commands`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&app.flags.config, "config", "", "config file (default is $XDG_CONFIG_HOME/borgwrap/config.cue)")
	flags.StringVar(&app.flags.borg, "borg", "", "borg executable to run")
	flags.StringVar(&app.flags.envFile, "env-file", "", "dotenv file with BORG_* variables")
	flags.StringVar(&app.flags.logFile, "log-file", "", "write logs to a rotating file")

	rootCmd.AddCommand(
		newRunCommand(app),
		newWatchCommand(app),
		newInteractiveCommand(app),
		newExportCommand(app),
		newCommandsCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}
	renderIssue(app, err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(int(exitErr.Code))
	}
	os.Exit(1)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
