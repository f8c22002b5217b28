// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// DefaultEncryption is the init encryption mode used when none is given.
const DefaultEncryption = "repokey"

var (
	umaskPattern = regexp.MustCompile(`^[0-9]{4}$`)

	encryptionModes = []string{
		"none",
		"authenticated",
		"authenticated-blake2",
		"repokey",
		"keyfile",
		"repokey-blake2",
		"keyfile-blake2",
	}
)

// Options is implemented by every per-command options struct.
//
// Fields carry a `flag` tag naming the borg option without leading dashes.
// A zero value means the option is unset and is not emitted.
type Options interface {
	// Common returns the options shared by all commands.
	Common() *CommonOptions
	// Validate reports values borg would reject.
	Validate() error
}

// defaulter is implemented by options with values that must always be present.
type defaulter interface {
	applyDefaults()
}

// --- Option categories ---

// CommonOptions are accepted by every borg command.
type CommonOptions struct {
	Critical          bool     `flag:"critical"`
	Error             bool     `flag:"error"`
	Warning           bool     `flag:"warning"`
	Info              bool     `flag:"info"`
	Verbose           bool     `flag:"verbose"`
	Debug             bool     `flag:"debug"`
	DebugTopic        []string `flag:"debug-topic"`
	Progress          bool     `flag:"progress"`
	LogJSON           bool     `flag:"log-json"`
	LockWait          int      `flag:"lock-wait"`
	BypassLock        bool     `flag:"bypass-lock"`
	ShowVersion       bool     `flag:"show-version"`
	ShowRC            bool     `flag:"show-rc"`
	Umask             string   `flag:"umask"`
	RemotePath        string   `flag:"remote-path"`
	RemoteRatelimit   int      `flag:"remote-ratelimit"`
	ConsiderPartFiles bool     `flag:"consider-part-files"`
	DebugProfile      string   `flag:"debug-profile"`
	Rsh               string   `flag:"rsh"`
}

// Common returns o itself.
func (o *CommonOptions) Common() *CommonOptions { return o }

// Validate checks the umask format.
func (o *CommonOptions) Validate() error {
	if o.Umask != "" && !umaskPattern.MatchString(o.Umask) {
		return fmt.Errorf("umask must be a four digit permission code such as 0077, got %q", o.Umask)
	}
	return nil
}

// ExclusionOptions select paths by pattern.
type ExclusionOptions struct {
	Exclude      []string `flag:"exclude"`
	ExcludeFrom  string   `flag:"exclude-from"`
	Pattern      []string `flag:"pattern"`
	PatternsFrom string   `flag:"patterns-from"`
}

// ExclusionInput are exclusion options for commands that read files into an archive.
type ExclusionInput struct {
	ExclusionOptions
	ExcludeCaches    bool     `flag:"exclude-caches"`
	ExcludeIfPresent []string `flag:"exclude-if-present"`
	KeepExcludeTags  bool     `flag:"keep-exclude-tags"`
	KeepTagFiles     bool     `flag:"keep-tag-files"`
	ExcludeNodump    bool     `flag:"exclude-nodump"`
}

// ExclusionOutput are exclusion options for commands that write archive contents out.
type ExclusionOutput struct {
	ExclusionOptions
	StripComponents int `flag:"strip-components"`
}

// FilesystemOptions control which file metadata is read.
type FilesystemOptions struct {
	OneFileSystem bool   `flag:"one-file-system"`
	NumericOwner  bool   `flag:"numeric-owner"`
	Noatime       bool   `flag:"noatime"`
	Noctime       bool   `flag:"noctime"`
	Nobirthtime   bool   `flag:"nobirthtime"`
	Nobsdflags    bool   `flag:"nobsdflags"`
	Noacls        bool   `flag:"noacls"`
	Noxattrs      bool   `flag:"noxattrs"`
	IgnoreInode   bool   `flag:"ignore-inode"`
	FilesCache    string `flag:"files-cache"`
	ReadSpecial   bool   `flag:"read-special"`
}

// ArchiveInput are archive options for commands that write archives.
type ArchiveInput struct {
	Comment            string `flag:"comment"`
	Timestamp          string `flag:"timestamp"`
	CheckpointInterval int    `flag:"checkpoint-interval"`
	ChunkerParams      string `flag:"chunker-params"`
	Compression        string `flag:"compression"`
}

// ArchivePattern select archives by name.
type ArchivePattern struct {
	Prefix       string `flag:"prefix"`
	GlobArchives string `flag:"glob-archives"`
}

func (o *ArchivePattern) validatePattern() error {
	if o.Prefix != "" && o.GlobArchives != "" {
		return errors.New("prefix and glob-archives are mutually exclusive")
	}
	return nil
}

// ArchiveOutput filter and order the archives a command considers.
type ArchiveOutput struct {
	ArchivePattern
	SortBy string `flag:"sort-by"`
	First  int    `flag:"first"`
	Last   int    `flag:"last"`
}

// --- Per-command options ---

// InitOptions configure borg init.
type InitOptions struct {
	CommonOptions
	// Encryption is always emitted; it defaults to DefaultEncryption.
	Encryption     string `flag:"encryption"`
	AppendOnly     bool   `flag:"append-only"`
	StorageQuota   string `flag:"storage-quota"`
	MakeParentDirs bool   `flag:"make-parent-dirs"`
}

func (o *InitOptions) applyDefaults() {
	if o.Encryption == "" {
		o.Encryption = DefaultEncryption
	}
}

// Validate checks the encryption mode.
func (o *InitOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	if o.Encryption != "" && !slices.Contains(encryptionModes, o.Encryption) {
		return fmt.Errorf("unknown encryption mode %q", o.Encryption)
	}
	return nil
}

// CreateOptions configure borg create.
type CreateOptions struct {
	CommonOptions
	ExclusionInput
	FilesystemOptions
	ArchiveInput

	DryRun       bool   `flag:"dry-run"`
	Stats        bool   `flag:"stats"`
	List         bool   `flag:"list"`
	Filter       string `flag:"filter"`
	JSON         bool   `flag:"json"`
	NoCacheSync  bool   `flag:"no-cache-sync"`
	NoFilesCache bool   `flag:"no-files-cache"`
	StdinName    string `flag:"stdin-name"`
	StdinUser    string `flag:"stdin-user"`
	StdinGroup   string `flag:"stdin-group"`
	StdinMode    string `flag:"stdin-mode"`
}

// ExtractOptions configure borg extract.
type ExtractOptions struct {
	CommonOptions
	ExclusionOutput

	List         bool `flag:"list"`
	DryRun       bool `flag:"dry-run"`
	NumericOwner bool `flag:"numeric-owner"`
	Nobsdflags   bool `flag:"nobsdflags"`
	Noacls       bool `flag:"noacls"`
	Noxattrs     bool `flag:"noxattrs"`
	Stdout       bool `flag:"stdout"`
	Sparse       bool `flag:"sparse"`
}

// CheckOptions configure borg check.
type CheckOptions struct {
	CommonOptions
	ArchiveOutput

	RepositoryOnly bool `flag:"repository-only"`
	ArchivesOnly   bool `flag:"archives-only"`
	VerifyData     bool `flag:"verify-data"`
	Repair         bool `flag:"repair"`
	SaveSpace      bool `flag:"save-space"`
}

// Validate rejects combinations borg check refuses.
func (o *CheckOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	if o.RepositoryOnly && o.VerifyData {
		return errors.New("repository-only conflicts with verify-data")
	}
	return o.validatePattern()
}

// ListOptions configure borg list.
type ListOptions struct {
	CommonOptions
	ArchiveOutput
	ExclusionOptions

	Short     bool   `flag:"short"`
	Format    string `flag:"format"`
	JSON      bool   `flag:"json"`
	JSONLines bool   `flag:"json-lines"`
}

// Validate checks the archive filters.
func (o *ListOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	return o.validatePattern()
}

// DiffOptions configure borg diff.
type DiffOptions struct {
	CommonOptions
	ExclusionOptions

	NumericOwner      bool `flag:"numeric-owner"`
	SameChunkerParams bool `flag:"same-chunker-params"`
	Sort              bool `flag:"sort"`
	JSONLines         bool `flag:"json-lines"`
}

// DeleteOptions configure borg delete.
type DeleteOptions struct {
	CommonOptions
	ArchiveOutput

	DryRun             bool `flag:"dry-run"`
	List               bool `flag:"list"`
	Stats              bool `flag:"stats"`
	CacheOnly          bool `flag:"cache-only"`
	Force              bool `flag:"force"`
	KeepSecurityInfo   bool `flag:"keep-security-info"`
	SaveSpace          bool `flag:"save-space"`
	CheckpointInterval int  `flag:"checkpoint-interval"`
}

// Validate checks the archive filters.
func (o *DeleteOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	return o.validatePattern()
}

// PruneOptions configure borg prune.
type PruneOptions struct {
	CommonOptions
	ArchivePattern

	DryRun       bool   `flag:"dry-run"`
	Force        bool   `flag:"force"`
	Stats        bool   `flag:"stats"`
	List         bool   `flag:"list"`
	KeepWithin   string `flag:"keep-within"`
	KeepLast     int    `flag:"keep-last"`
	KeepSecondly int    `flag:"keep-secondly"`
	KeepMinutely int    `flag:"keep-minutely"`
	KeepHourly   int    `flag:"keep-hourly"`
	KeepDaily    int    `flag:"keep-daily"`
	KeepWeekly   int    `flag:"keep-weekly"`
	KeepMonthly  int    `flag:"keep-monthly"`
	KeepYearly   int    `flag:"keep-yearly"`
	SaveSpace    bool   `flag:"save-space"`
}

// Validate checks the archive filters.
func (o *PruneOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	return o.validatePattern()
}

// CompactOptions configure borg compact.
type CompactOptions struct {
	CommonOptions

	CleanupCommits bool `flag:"cleanup-commits"`
	// Threshold is the minimum saved space in percent; borg defaults to 10.
	Threshold int `flag:"threshold"`
}

// InfoOptions configure borg info.
type InfoOptions struct {
	CommonOptions
	ArchiveOutput

	JSON bool `flag:"json"`
}

// Validate checks the archive filters.
func (o *InfoOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	return o.validatePattern()
}

// MountOptions configure borg mount. Foreground is always set so the
// returned Invocation owns the FUSE process.
type MountOptions struct {
	CommonOptions
	ArchiveOutput
	ExclusionOutput

	Foreground bool   `flag:"foreground"`
	O          string `flag:"o"`
}

func (o *MountOptions) applyDefaults() {
	o.Foreground = true
}

// Validate checks the archive filters.
func (o *MountOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	return o.validatePattern()
}

// KeyExportOptions configure borg key export.
type KeyExportOptions struct {
	CommonOptions

	Paper  bool `flag:"paper"`
	QrHTML bool `flag:"qr-html"`
}

// Validate rejects selecting both export formats.
func (o *KeyExportOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	if o.Paper && o.QrHTML {
		return errors.New("paper and qr-html are mutually exclusive")
	}
	return nil
}

// KeyImportOptions configure borg key import.
type KeyImportOptions struct {
	CommonOptions

	Paper bool `flag:"paper"`
}

// UpgradeOptions configure borg upgrade.
type UpgradeOptions struct {
	CommonOptions

	DryRun     bool `flag:"dry-run"`
	Inplace    bool `flag:"inplace"`
	Force      bool `flag:"force"`
	Tam        bool `flag:"tam"`
	DisableTam bool `flag:"disable-tam"`
}

// Validate rejects enabling and disabling TAM at once.
func (o *UpgradeOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}
	if o.Tam && o.DisableTam {
		return errors.New("tam and disable-tam are mutually exclusive")
	}
	return nil
}

// RecreateOptions configure borg recreate.
type RecreateOptions struct {
	CommonOptions
	ExclusionInput
	ArchiveInput

	List       bool   `flag:"list"`
	Filter     string `flag:"filter"`
	DryRun     bool   `flag:"dry-run"`
	Stats      bool   `flag:"stats"`
	Target     string `flag:"target"`
	Recompress string `flag:"recompress"`
}

// ImportTarOptions configure borg import-tar.
type ImportTarOptions struct {
	CommonOptions
	ArchiveInput

	TarFilter   string `flag:"tar-filter"`
	Stats       bool   `flag:"stats"`
	List        bool   `flag:"list"`
	Filter      string `flag:"filter"`
	JSON        bool   `flag:"json"`
	IgnoreZeros bool   `flag:"ignore-zeros"`
}

// ExportTarOptions configure borg export-tar.
type ExportTarOptions struct {
	CommonOptions
	ExclusionOutput

	TarFilter string `flag:"tar-filter"`
	List      bool   `flag:"list"`
}

// ServeOptions configure borg serve.
type ServeOptions struct {
	CommonOptions

	RestrictToPath       []string `flag:"restrict-to-path"`
	RestrictToRepository []string `flag:"restrict-to-repository"`
	AppendOnly           bool     `flag:"append-only"`
	StorageQuota         string   `flag:"storage-quota"`
}

// ConfigOptions configure borg config.
type ConfigOptions struct {
	CommonOptions

	Cache  bool `flag:"cache"`
	Delete bool `flag:"delete"`
	List   bool `flag:"list"`
}
