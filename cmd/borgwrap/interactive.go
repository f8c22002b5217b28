// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newInteractiveCommand(app *App) *cobra.Command {
	var rf requestFlags
	cmd := &cobra.Command{
		Use:   "interactive <command> [positionals...]",
		Short: "Run a borg command attached to a pseudo-terminal",
		Long: `Run a borg command attached to a pseudo-terminal, for the prompts of
commands such as 'key change-passphrase'. The local terminal is put in raw
mode while borg runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.request(args)
			if err != nil {
				return err
			}
			client, err := app.client(cmd.Context())
			if err != nil {
				return err
			}

			if f, ok := app.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				state, err := term.MakeRaw(int(f.Fd()))
				if err != nil {
					return err
				}
				defer func() { _ = term.Restore(int(f.Fd()), state) }()
			}

			res, err := client.Interactive(cmd.Context(), req, app.stdin, app.stdout)
			if err != nil {
				return err
			}
			return resultError(res)
		},
	}
	rf.register(cmd.Flags())
	return cmd
}
