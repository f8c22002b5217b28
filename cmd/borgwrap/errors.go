// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/borgwrap/borgwrap/internal/environ"
	"github.com/borgwrap/borgwrap/internal/issue"
	"github.com/borgwrap/borgwrap/internal/process"
	"github.com/borgwrap/borgwrap/pkg/borg"
	"github.com/borgwrap/borgwrap/pkg/types"
)

// borg's modern exit codes 50 to 53 report passphrase and passcommand failures.
const (
	rcPassphraseFirst = 50
	rcPassphraseLast  = 53
)

// classifyError maps a failure to the issue catalog entry that explains it.
// Zero means no entry applies.
func classifyError(err error) issue.Id {
	var (
		launch *process.LaunchError
		status *borg.ExitStatusError
		ae     *issue.ActionableError
	)
	switch {
	case errors.As(err, &launch) && launch.NotFound():
		return issue.BorgNotFoundId
	case errors.Is(err, process.ErrLaunchFailed):
		return issue.LaunchFailedId
	case errors.Is(err, environ.ErrEnvFile):
		return issue.EnvFileNotFoundId
	case errors.Is(err, borg.ErrInvalidOption), errors.Is(err, borg.ErrUnknownCommand),
		errors.Is(err, borg.ErrPositionals), errors.Is(err, types.ErrInvalidArchiveName):
		return issue.InvalidOptionsId
	case errors.Is(err, borg.ErrProfileMismatch):
		return issue.ProfileMismatchId
	case errors.As(err, &status):
		switch code := int(status.ExitCode); {
		case code >= rcPassphraseFirst && code <= rcPassphraseLast,
			strings.Contains(strings.ToLower(status.Message), "passphrase"):
			return issue.PassphraseRequiredId
		default:
			return issue.NonzeroExitId
		}
	case errors.As(err, &ae) && ae.Issue() != nil:
		return ae.Issue().Id()
	}
	return 0
}

// renderIssue prints the catalog entry for err to the app's stderr.
func renderIssue(app *App, err error) {
	id := classifyError(err)
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	style := "dark"
	if app.cfg != nil && app.cfg.UI.ColorScheme == "light" {
		style = "light"
	}
	if !isTerminal(app.stderr) {
		style = "notty"
	}
	rendered, rerr := entry.Render(style)
	if rerr != nil {
		return
	}
	fmt.Fprint(app.stderr, rendered)
	if app.flags.verbose {
		fmt.Fprintln(app.stderr, formatErrorForDisplay(err, true))
	}
}
