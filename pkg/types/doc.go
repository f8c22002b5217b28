// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the borg client, the
// process runner and the CLI: exit codes following borg's modern exit code
// convention and repository/archive locations.
//
// This package is a leaf dependency: it imports only the standard library.
package types
