// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// borgwrap configuration file\n")
	sb.WriteString("// Run 'borgwrap commands' to list command names usable under defaults.\n\n")

	sb.WriteString("borg: {\n")
	fmt.Fprintf(&sb, "\tbinary: %q\n", cfg.Borg.Binary)
	if cfg.Borg.Launcher != "" {
		fmt.Fprintf(&sb, "\tlauncher: %q\n", cfg.Borg.Launcher)
	}
	fmt.Fprintf(&sb, "\tlog_level: %q\n", cfg.Borg.LogLevel)
	fmt.Fprintf(&sb, "\tlog_json: %v\n", cfg.Borg.LogJSON)
	if cfg.Borg.GracePeriod != "" {
		fmt.Fprintf(&sb, "\tgrace_period: %q\n", cfg.Borg.GracePeriod)
	}
	sb.WriteString("}\n")

	if cfg.EnvFile != "" {
		fmt.Fprintf(&sb, "\nenv_file: %q\n", cfg.EnvFile)
	}

	if len(cfg.Environment) > 0 {
		sb.WriteString("\nenvironment: {\n")
		for _, k := range sortedKeys(cfg.Environment) {
			fmt.Fprintf(&sb, "\t%s: %q\n", k, cfg.Environment[k])
		}
		sb.WriteString("}\n")
	}

	if len(cfg.Options) > 0 {
		sb.WriteString("\noptions: {\n")
		writeValues(&sb, "\t", cfg.Options)
		sb.WriteString("}\n")
	}

	if len(cfg.Defaults) > 0 {
		sb.WriteString("\ndefaults: {\n")
		for _, name := range sortedKeys(cfg.Defaults) {
			fmt.Fprintf(&sb, "\t%q: {\n", name)
			writeValues(&sb, "\t\t", cfg.Defaults[name])
			sb.WriteString("\t}\n")
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	if cfg.Log.File != "" {
		fmt.Fprintf(&sb, "\tfile: %q\n", cfg.Log.File)
	}
	fmt.Fprintf(&sb, "\tmax_size_mb: %d\n", cfg.Log.MaxSizeMB)
	fmt.Fprintf(&sb, "\tmax_backups: %d\n", cfg.Log.MaxBackups)
	fmt.Fprintf(&sb, "\tcompress: %v\n", cfg.Log.Compress)
	sb.WriteString("}\n")

	return sb.String()
}

// writeValues writes an option map as quoted CUE fields. JSON literals are
// valid CUE, so values are written in their JSON form.
func writeValues(sb *strings.Builder, indent string, values map[string]any) {
	for _, k := range sortedKeys(values) {
		lit, err := json.Marshal(values[k])
		if err != nil {
			lit = []byte(fmt.Sprintf("%q", fmt.Sprint(values[k])))
		}
		fmt.Fprintf(sb, "%s%q: %s\n", indent, k, lit)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
