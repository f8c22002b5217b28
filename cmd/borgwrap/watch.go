// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/borgwrap/borgwrap/pkg/borg"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const watchInterval = 200 * time.Millisecond

func newWatchCommand(app *App) *cobra.Command {
	var rf requestFlags
	cmd := &cobra.Command{
		Use:   "watch <command> [positionals...]",
		Short: "Start a borg command and follow its output live",
		Long: `Start a borg command in the background and print the lines it writes
while it runs. Interrupting borgwrap cancels borg and reports the run as
incomplete.`,
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
			inv, err := client.Start(cmd.Context(), req)
			if err != nil {
				return err
			}
			res, err := follow(cmd.Context(), inv, app.stdout, watchInterval)
			if err != nil {
				return err
			}
			printSummary(app.stdout, res)
			return resultError(res)
		},
	}
	rf.register(cmd.Flags())
	return cmd
}

// follow prints the lines inv produces every interval until it exits. When
// ctx ends first the invocation is cancelled and its result collected.
func follow(ctx context.Context, inv *borg.Invocation, w io.Writer, interval time.Duration) (*borg.Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Drained lines keep their terminators, so progress lines ending in
	// "\r" overwrite each other on a terminal.
	flush := func() {
		for _, line := range inv.DrainStdout() {
			fmt.Fprint(w, line)
		}
		for _, line := range inv.DrainStderr() {
			body, term := splitTerminator(line)
			fmt.Fprint(w, stderrStyle.Render(body), term)
		}
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case <-inv.Done():
			flush()
			return inv.Wait(context.WithoutCancel(ctx))
		case <-ctx.Done():
			inv.Cancel()
			res, err := inv.Wait(context.WithoutCancel(ctx))
			flush()
			return res, err
		}
	}
}

// splitTerminator separates a drained line from its "\n", "\r" or "\r\n".
func splitTerminator(line string) (body, term string) {
	body = strings.TrimRight(line, "\r\n")
	return body, line[len(body):]
}

func printSummary(w io.Writer, res *borg.Result) {
	status := SuccessStyle.Render("done")
	switch {
	case res.Incomplete:
		status = WarningStyle.Render("incomplete")
	case !res.ExitCode.IsSuccess():
		status = ErrorStyle.Render(fmt.Sprintf("exit %d", res.ExitCode))
	}
	fmt.Fprintf(w, "\n%s %s in %s (stdout %s, stderr %s)\n",
		CmdStyle.Render("borg "+res.Command),
		status,
		res.Duration.Round(time.Millisecond),
		humanize.Bytes(uint64(len(res.Stdout))),
		humanize.Bytes(uint64(len(res.Stderr))),
	)
}
