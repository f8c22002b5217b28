// SPDX-License-Identifier: MPL-2.0

package borg

func one(name string) Positional      { return Positional{Name: name, Card: One} }
func optional(name string) Positional { return Positional{Name: name, Card: Optional} }
func many(name string) Positional     { return Positional{Name: name, Card: Many} }

func optionsOf[T any, P interface {
	*T
	Options
}]() func() Options {
	return func() Options { return P(new(T)) }
}

// progRule is shared by every command: --progress output goes to stderr.
func progRule() OutputRule {
	return OutputRule{
		Kind:    KindProg,
		Trigger: WhenAny("progress"),
		Variants: []Variant{
			{When: WhenAny("log-json"), Channel: StderrLog, Select: SelectProgressRecords},
			{When: Always(), Channel: StderrPlain, Select: SelectWhole},
		},
	}
}

// statsRule reads --stats output. With jsonStats, --json also triggers it
// and moves it to stdout.
func statsRule(jsonStats bool) OutputRule {
	rule := OutputRule{Kind: KindStats, Trigger: WhenAny("stats")}
	if jsonStats {
		rule.Trigger = WhenAny("stats", "json")
		rule.Variants = append(rule.Variants, Variant{When: WhenAny("json"), Channel: StdoutJSON, Select: SelectWhole})
	}
	rule.Variants = append(rule.Variants,
		Variant{When: WhenAny("log-json"), Channel: StderrLog, Select: SelectStatsRecords},
		Variant{When: Always(), Channel: StderrPlain, Select: SelectStatsBlock},
	)
	return rule
}

// fileListRule reads the --list file listing borg writes to stderr.
func fileListRule() OutputRule {
	return OutputRule{
		Kind:    KindList,
		Trigger: WhenAny("list"),
		Variants: []Variant{
			{When: WhenAny("log-json"), Channel: StderrLog, Select: SelectListRecords},
			{When: Always(), Channel: StderrPlain, Select: SelectOutsideStatsBlock},
		},
	}
}

// stdoutRule is an always active stdout output, JSON when any of jsonFlags is set.
func stdoutRule(kind OutputKind, jsonFlags ...string) OutputRule {
	rule := OutputRule{Kind: kind, Trigger: Always()}
	if len(jsonFlags) > 0 {
		rule.Variants = append(rule.Variants, Variant{When: WhenAny(jsonFlags...), Channel: StdoutJSON, Select: SelectWhole})
	}
	rule.Variants = append(rule.Variants, Variant{When: Always(), Channel: StdoutPlain, Select: SelectWhole})
	return rule
}

func rawStdoutRule(kind OutputKind, trigger Condition) OutputRule {
	return OutputRule{
		Kind:     kind,
		Trigger:  trigger,
		Variants: []Variant{{When: Always(), Channel: StdoutRaw, Select: SelectWhole}},
	}
}

func profile(rules ...OutputRule) OutputProfile {
	return OutputProfile{Rules: append(rules, progRule())}
}

func init() {
	register(&CommandSpec{
		Name:        "init",
		Tokens:      []string{"init"},
		Positionals: []Positional{one("REPOSITORY")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Initialize an empty repository",
		newOptions:  optionsOf[InitOptions](),
	})
	register(&CommandSpec{
		Name:        "create",
		Tokens:      []string{"create"},
		Positionals: []Positional{one("ARCHIVE"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryExclusionInput, CategoryFilesystem, CategoryArchiveInput},
		Profile:     profile(statsRule(true), fileListRule()),
		Summary:     "Create a new archive",
		newOptions:  optionsOf[CreateOptions](),
	})
	register(&CommandSpec{
		Name:        "extract",
		Tokens:      []string{"extract"},
		Positionals: []Positional{one("ARCHIVE"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryExclusionOutput},
		Profile:     profile(fileListRule(), rawStdoutRule(KindExtract, WhenAny("stdout"))),
		Summary:     "Extract archive contents",
		newOptions:  optionsOf[ExtractOptions](),
	})
	register(&CommandSpec{
		Name:        "check",
		Tokens:      []string{"check"},
		Positionals: []Positional{many("REPOSITORY_OR_ARCHIVE")},
		Categories:  []Category{CategoryCommon, CategoryArchiveOutput},
		Profile:     profile(),
		Summary:     "Verify repository consistency",
		newOptions:  optionsOf[CheckOptions](),
	})
	register(&CommandSpec{
		Name:        "rename",
		Tokens:      []string{"rename"},
		Positionals: []Positional{one("ARCHIVE"), one("NEWNAME")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Rename an existing archive",
	})
	register(&CommandSpec{
		Name:        "list",
		Tokens:      []string{"list"},
		Positionals: []Positional{one("REPOSITORY_OR_ARCHIVE"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryArchiveOutput, CategoryExclusion},
		Profile: OutputProfile{
			Rules:     []OutputRule{stdoutRule(KindList, "json", "json-lines"), progRule()},
			Conflicts: [][2]string{{"json", "json-lines"}},
		},
		Summary:    "List archives or archive contents",
		newOptions: optionsOf[ListOptions](),
	})
	register(&CommandSpec{
		Name:        "diff",
		Tokens:      []string{"diff"},
		Positionals: []Positional{one("ARCHIVE"), one("ARCHIVE2"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryExclusion},
		Profile:     profile(stdoutRule(KindDiff, "json-lines")),
		Summary:     "Find differences between two archives",
		newOptions:  optionsOf[DiffOptions](),
	})
	register(&CommandSpec{
		Name:        "delete",
		Tokens:      []string{"delete"},
		Positionals: []Positional{one("REPOSITORY_OR_ARCHIVE"), many("ARCHIVE")},
		Categories:  []Category{CategoryCommon, CategoryArchiveOutput},
		Profile:     profile(statsRule(false), fileListRule()),
		Summary:     "Delete a repository or archives",
		newOptions:  optionsOf[DeleteOptions](),
	})
	register(&CommandSpec{
		Name:        "prune",
		Tokens:      []string{"prune"},
		Positionals: []Positional{one("REPOSITORY")},
		Categories:  []Category{CategoryCommon, CategoryArchivePattern},
		Profile:     profile(statsRule(false), fileListRule()),
		Summary:     "Prune archives according to retention rules",
		newOptions:  optionsOf[PruneOptions](),
	})
	register(&CommandSpec{
		Name:        "compact",
		Tokens:      []string{"compact"},
		Positionals: []Positional{one("REPOSITORY")},
		Categories:  []Category{CategoryCommon},
		Profile: profile(OutputRule{
			Kind:    KindCompact,
			Trigger: WhenAny("verbose", "info"),
			Variants: []Variant{
				{When: WhenAny("log-json"), Channel: StderrLog, Select: SelectRepositoryRecords},
				{When: Always(), Channel: StderrPlain, Select: SelectWhole},
			},
		}),
		Summary:    "Free repository space",
		newOptions: optionsOf[CompactOptions](),
	})
	register(&CommandSpec{
		Name:        "info",
		Tokens:      []string{"info"},
		Positionals: []Positional{one("REPOSITORY_OR_ARCHIVE")},
		Categories:  []Category{CategoryCommon, CategoryArchiveOutput},
		Profile:     profile(stdoutRule(KindInfo, "json")),
		Summary:     "Show repository or archive information",
		newOptions:  optionsOf[InfoOptions](),
	})
	register(&CommandSpec{
		Name:        "mount",
		Tokens:      []string{"mount"},
		Positionals: []Positional{one("REPOSITORY_OR_ARCHIVE"), one("MOUNTPOINT"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryArchiveOutput, CategoryExclusionOutput},
		Profile:     profile(),
		Summary:     "Mount an archive or repository as a FUSE filesystem",
		newOptions:  optionsOf[MountOptions](),
	})
	register(&CommandSpec{
		Name:        "umount",
		Tokens:      []string{"umount"},
		Positionals: []Positional{one("MOUNTPOINT")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Unmount a FUSE filesystem",
	})
	register(&CommandSpec{
		Name:        "key change-passphrase",
		Tokens:      []string{"key", "change-passphrase"},
		Positionals: []Positional{one("REPOSITORY")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Change the repository key passphrase",
	})
	register(&CommandSpec{
		Name:        "key export",
		Tokens:      []string{"key", "export"},
		Positionals: []Positional{one("REPOSITORY"), one("PATH")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Export the repository key for backup",
		newOptions:  optionsOf[KeyExportOptions](),
	})
	register(&CommandSpec{
		Name:        "key import",
		Tokens:      []string{"key", "import"},
		Positionals: []Positional{one("REPOSITORY"), one("PATH")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Import a previously exported repository key",
		newOptions:  optionsOf[KeyImportOptions](),
	})
	register(&CommandSpec{
		Name:        "upgrade",
		Tokens:      []string{"upgrade"},
		Positionals: []Positional{one("REPOSITORY")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Upgrade a repository from a previous version",
		newOptions:  optionsOf[UpgradeOptions](),
	})
	register(&CommandSpec{
		Name:        "recreate",
		Tokens:      []string{"recreate"},
		Positionals: []Positional{one("REPOSITORY_OR_ARCHIVE"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryExclusionInput, CategoryArchiveInput},
		Profile:     profile(statsRule(false), fileListRule()),
		Summary:     "Recreate archives with new settings",
		newOptions:  optionsOf[RecreateOptions](),
	})
	register(&CommandSpec{
		Name:        "import-tar",
		Tokens:      []string{"import-tar"},
		Positionals: []Positional{one("ARCHIVE"), one("TARFILE")},
		Categories:  []Category{CategoryCommon, CategoryArchiveInput},
		Profile:     profile(statsRule(true), fileListRule()),
		Summary:     "Create an archive from a tar file",
		newOptions:  optionsOf[ImportTarOptions](),
	})
	register(&CommandSpec{
		Name:        "export-tar",
		Tokens:      []string{"export-tar"},
		Positionals: []Positional{one("ARCHIVE"), one("FILE"), many("PATH")},
		Categories:  []Category{CategoryCommon, CategoryExclusionOutput},
		Profile:     profile(fileListRule(), rawStdoutRule(KindTar, WhenPositional(1, "-"))),
		Summary:     "Export archive contents as a tar file",
		newOptions:  optionsOf[ExportTarOptions](),
	})
	register(&CommandSpec{
		Name:       "serve",
		Tokens:     []string{"serve"},
		Categories: []Category{CategoryCommon},
		Profile:    profile(),
		Summary:    "Serve a repository over stdio for remote access",
		newOptions: optionsOf[ServeOptions](),
	})
	register(&CommandSpec{
		Name:        "config",
		Tokens:      []string{"config"},
		Positionals: []Positional{one("REPOSITORY"), many("CHANGE")},
		Categories:  []Category{CategoryCommon},
		Profile: profile(
			OutputRule{
				Kind:     KindList,
				Trigger:  WhenAny("list"),
				Variants: []Variant{{When: Always(), Channel: StdoutPlain, Select: SelectWhole}},
			},
			OutputRule{
				Kind:     KindChanges,
				Trigger:  WhenChanges(),
				Variants: []Variant{{When: Always(), Channel: StdoutPlain, Select: SelectWhole}},
			},
		),
		Summary:    "Query or change repository and cache settings",
		newOptions: optionsOf[ConfigOptions](),
	})
	register(&CommandSpec{
		Name:        "with-lock",
		Tokens:      []string{"with-lock"},
		Positionals: []Positional{one("REPOSITORY"), one("COMMAND"), many("ARG")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Run a command while holding the repository lock",
	})
	register(&CommandSpec{
		Name:        "break-lock",
		Tokens:      []string{"break-lock"},
		Positionals: []Positional{one("REPOSITORY")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(),
		Summary:     "Break the repository and cache locks",
	})
	register(&CommandSpec{
		Name:        "benchmark crud",
		Tokens:      []string{"benchmark", "crud"},
		Positionals: []Positional{one("REPOSITORY"), one("PATH")},
		Categories:  []Category{CategoryCommon},
		Profile:     profile(stdoutRule(KindBenchmark)),
		Summary:     "Benchmark repository create, read, update and delete",
	})
}
