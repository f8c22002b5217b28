// SPDX-License-Identifier: MPL-2.0

// Package environ builds the environment handed to borg.
//
// A Manager layers safety defaults and caller overrides on top of a base
// environment (normally os.Environ). It never modifies the process
// environment, so several clients with different repositories and
// passphrases can coexist in one program.
package environ
