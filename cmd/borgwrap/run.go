// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/borgwrap/borgwrap/internal/output"
	"github.com/borgwrap/borgwrap/pkg/borg"

	"github.com/spf13/cobra"
)

func newRunCommand(app *App) *cobra.Command {
	var (
		rf     requestFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "run <command> [positionals...]",
		Short: "Run a borg command and print its result",
		Long: `Run a borg command and print its output.

With one active output the bare value is printed; with several, a map keyed
by output kind. A nonzero borg exit becomes the exit status of borgwrap.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.request(args)
			if err != nil {
				return err
			}
			enc, err := output.NewEncoder(app.stdout, output.Format(format))
			if err != nil {
				return err
			}
			client, err := app.client(cmd.Context())
			if err != nil {
				return err
			}

			res, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := enc.Encode(res.Output); err != nil {
				return err
			}
			return resultError(res)
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "f", string(output.FormatText), "output format: text, json, yaml or cbor")
	return cmd
}

// resultError converts a failed borg run into an ExitError carrying borg's status.
func resultError(res *borg.Result) error {
	if err := res.Err(); err != nil {
		return &ExitError{Code: res.ExitCode, Err: err}
	}
	return nil
}
