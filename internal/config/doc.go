// SPDX-License-Identifier: MPL-2.0

// Package config handles borgwrap configuration using Viper with CUE as the
// file format.
//
// Configuration is loaded from ~/.config/borgwrap/config.cue (or the XDG
// equivalent on Linux, ~/Library/Application Support/borgwrap/config.cue on
// macOS, %APPDATA%\borgwrap\config.cue on Windows), falling back to
// config.cue in the current directory. A config.toml next to it is accepted
// instead. Both formats are validated against the CUE schema in
// config_schema.cue.
package config
