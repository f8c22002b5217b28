// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/borgwrap/borgwrap/internal/issue"
	"github.com/borgwrap/borgwrap/internal/tarsink"
	"github.com/borgwrap/borgwrap/pkg/borg"
	"github.com/borgwrap/borgwrap/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newExportCommand(app *App) *cobra.Command {
	var rf requestFlags
	cmd := &cobra.Command{
		Use:   "export <archive> <output> [paths...]",
		Short: "Export an archive as a (compressed) tar file",
		Long: `Export an archive as a tar file. The extension of <output> selects the
compression: .zst or .tzst for zstd, .lz4 for lz4, .gz or .tgz for gzip,
anything else for none. The BLAKE3 digest of the tar stream is printed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// An empty repository part means BORG_REPO.
			if _, name := types.SplitArchive(args[0]); name.Validate() != nil {
				return fmt.Errorf("export %q: %w", args[0], name.Validate())
			}
			opts, err := parseOptions(rf.options)
			if err != nil {
				return err
			}
			client, err := app.client(cmd.Context())
			if err != nil {
				return err
			}

			req := borg.Request{
				Command:     "export-tar",
				Positionals: append([]string{args[0], "-"}, args[2:]...),
			}
			if len(opts) > 0 {
				req.Options = opts
			}
			summary, err := exportToFile(cmd.Context(), client, req, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s (%s, tar %s, %s)\nblake3 %s\n",
				SuccessStyle.Render("✓"),
				summary.Path,
				summary.Compression,
				humanize.Bytes(uint64(summary.TarBytes)),
				humanize.Bytes(uint64(summary.FileBytes)),
				summary.Digest,
			)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&rf.options, "option", "o", nil, "borg export-tar option as name or name=value")
	return cmd
}

// exportToFile streams the tar borg writes to stdout into path. The file is
// removed unless borg succeeded and every byte reached the disk.
func exportToFile(ctx context.Context, client *borg.Client, req borg.Request, path string) (*tarsink.Summary, error) {
	sink, err := tarsink.Create(path)
	if err != nil {
		return nil, issue.WrapWithOperation(err, "open export file")
	}
	res, err := client.Stream(ctx, req, sink)
	if err != nil {
		return nil, issue.WrapWithOperation(errors.Join(err, sink.Abort()), "export "+req.Positionals[0])
	}
	if err := resultError(res); err != nil {
		return nil, errors.Join(err, sink.Abort())
	}
	if res.Incomplete {
		return nil, errors.Join(fmt.Errorf("export of %s was interrupted", req.Positionals[0]), sink.Abort())
	}
	summary, err := sink.Commit()
	if err != nil {
		return nil, issue.WrapWithOperation(err, "export "+req.Positionals[0])
	}
	return summary, nil
}
