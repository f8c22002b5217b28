// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"context"
	"io"
)

func (c *Client) run(ctx context.Context, command string, opts Options, positionals ...string) (*Result, error) {
	return c.Run(ctx, Request{Command: command, Positionals: positionals, Options: opts})
}

func withTail(head []string, tail ...string) []string {
	return append(append([]string(nil), head...), tail...)
}

// Init creates a repository.
func (c *Client) Init(ctx context.Context, repository string, opts *InitOptions) (*Result, error) {
	return c.run(ctx, "init", nilSafe(opts), repository)
}

// Create creates archive from paths.
func (c *Client) Create(ctx context.Context, archive string, opts *CreateOptions, paths ...string) (*Result, error) {
	return c.run(ctx, "create", nilSafe(opts), withTail([]string{archive}, paths...)...)
}

// Extract extracts paths, or everything, from archive into the working directory.
func (c *Client) Extract(ctx context.Context, archive string, opts *ExtractOptions, paths ...string) (*Result, error) {
	return c.run(ctx, "extract", nilSafe(opts), withTail([]string{archive}, paths...)...)
}

// Check verifies repositories or archives.
func (c *Client) Check(ctx context.Context, opts *CheckOptions, targets ...string) (*Result, error) {
	return c.run(ctx, "check", nilSafe(opts), targets...)
}

// Rename renames archive to newName.
func (c *Client) Rename(ctx context.Context, archive, newName string, opts *CommonOptions) (*Result, error) {
	return c.run(ctx, "rename", nilSafe(opts), archive, newName)
}

// List lists the archives of a repository or the contents of an archive.
func (c *Client) List(ctx context.Context, target string, opts *ListOptions, paths ...string) (*Result, error) {
	return c.run(ctx, "list", nilSafe(opts), withTail([]string{target}, paths...)...)
}

// Diff compares archive with archive2, which names an archive of the same repository.
func (c *Client) Diff(ctx context.Context, archive, archive2 string, opts *DiffOptions, paths ...string) (*Result, error) {
	return c.run(ctx, "diff", nilSafe(opts), withTail([]string{archive, archive2}, paths...)...)
}

// Delete deletes a repository, an archive, or the given archives of a repository.
func (c *Client) Delete(ctx context.Context, target string, opts *DeleteOptions, archives ...string) (*Result, error) {
	return c.run(ctx, "delete", nilSafe(opts), withTail([]string{target}, archives...)...)
}

// Prune deletes archives not kept by the retention options.
func (c *Client) Prune(ctx context.Context, repository string, opts *PruneOptions) (*Result, error) {
	return c.run(ctx, "prune", nilSafe(opts), repository)
}

// Compact frees repository space.
func (c *Client) Compact(ctx context.Context, repository string, opts *CompactOptions) (*Result, error) {
	return c.run(ctx, "compact", nilSafe(opts), repository)
}

// Info describes a repository or archive.
func (c *Client) Info(ctx context.Context, target string, opts *InfoOptions) (*Result, error) {
	return c.run(ctx, "info", nilSafe(opts), target)
}

// Mount starts borg mount in the foreground. The FUSE filesystem stays
// mounted until the Invocation is cancelled or Umount is called.
func (c *Client) Mount(ctx context.Context, target, mountpoint string, opts *MountOptions, paths ...string) (*Invocation, error) {
	return c.Start(ctx, Request{
		Command:     "mount",
		Positionals: withTail([]string{target, mountpoint}, paths...),
		Options:     nilSafe(opts),
	})
}

// Umount unmounts a FUSE filesystem.
func (c *Client) Umount(ctx context.Context, mountpoint string, opts *CommonOptions) (*Result, error) {
	return c.run(ctx, "umount", nilSafe(opts), mountpoint)
}

// KeyChangePassphrase changes the key passphrase. Borg reads the new
// passphrase from BORG_NEW_PASSPHRASE or from a terminal; see Interactive.
func (c *Client) KeyChangePassphrase(ctx context.Context, repository string, opts *CommonOptions) (*Result, error) {
	return c.run(ctx, "key change-passphrase", nilSafe(opts), repository)
}

// KeyExport writes the repository key to path.
func (c *Client) KeyExport(ctx context.Context, repository, path string, opts *KeyExportOptions) (*Result, error) {
	return c.run(ctx, "key export", nilSafe(opts), repository, path)
}

// KeyImport restores the repository key from path.
func (c *Client) KeyImport(ctx context.Context, repository, path string, opts *KeyImportOptions) (*Result, error) {
	return c.run(ctx, "key import", nilSafe(opts), repository, path)
}

// Upgrade upgrades a repository.
func (c *Client) Upgrade(ctx context.Context, repository string, opts *UpgradeOptions) (*Result, error) {
	return c.run(ctx, "upgrade", nilSafe(opts), repository)
}

// Recreate rewrites archives.
func (c *Client) Recreate(ctx context.Context, target string, opts *RecreateOptions, paths ...string) (*Result, error) {
	return c.run(ctx, "recreate", nilSafe(opts), withTail([]string{target}, paths...)...)
}

// ImportTar creates archive from tarFile, or from stdin when tarFile is "-".
func (c *Client) ImportTar(ctx context.Context, archive, tarFile string, opts *ImportTarOptions) (*Result, error) {
	return c.run(ctx, "import-tar", nilSafe(opts), archive, tarFile)
}

// ExportTar writes archive as a tar file. When file is "-" the tar stream is
// the tar output of the Result, as []byte.
func (c *Client) ExportTar(ctx context.Context, archive, file string, opts *ExportTarOptions, paths ...string) (*Result, error) {
	return c.run(ctx, "export-tar", nilSafe(opts), withTail([]string{archive, file}, paths...)...)
}

// ExportTarTo streams archive as an uncompressed tar to w.
func (c *Client) ExportTarTo(ctx context.Context, archive string, w io.Writer, opts *ExportTarOptions, paths ...string) (*Result, error) {
	req := Request{
		Command:     "export-tar",
		Positionals: withTail([]string{archive, "-"}, paths...),
		Options:     nilSafe(opts),
	}
	return c.Stream(ctx, req, w)
}

// Serve runs borg serve until the remote side disconnects.
func (c *Client) Serve(ctx context.Context, opts *ServeOptions) (*Result, error) {
	return c.run(ctx, "serve", nilSafe(opts))
}

// Config queries and sets repository settings, one borg run per change.
// The output holds the answers to the queries in order; mutations add no
// entry. It stops at the first change borg rejects.
func (c *Client) Config(ctx context.Context, repository string, opts *ConfigOptions, changes ...Change) (*Result, error) {
	return c.Run(ctx, Request{
		Command:     "config",
		Positionals: []string{repository},
		Options:     nilSafe(opts),
		Changes:     changes,
	})
}

// WithLock runs command with args while holding the repository lock.
func (c *Client) WithLock(ctx context.Context, repository string, opts *CommonOptions, command string, args ...string) (*Result, error) {
	return c.run(ctx, "with-lock", nilSafe(opts), withTail([]string{repository, command}, args...)...)
}

// BreakLock removes stale repository and cache locks.
func (c *Client) BreakLock(ctx context.Context, repository string, opts *CommonOptions) (*Result, error) {
	return c.run(ctx, "break-lock", nilSafe(opts), repository)
}

// BenchmarkCrud benchmarks the repository using files under path.
func (c *Client) BenchmarkCrud(ctx context.Context, repository, path string, opts *CommonOptions) (*Result, error) {
	return c.run(ctx, "benchmark crud", nilSafe(opts), repository, path)
}

// nilSafe turns a nil options pointer into an untyped nil.
func nilSafe[T any, P interface {
	*T
	Options
}](opts P) Options {
	if opts == nil {
		return nil
	}
	return opts
}
