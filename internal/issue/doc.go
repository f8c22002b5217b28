// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Errors may point at an entry of the issue catalog, a set
// of Markdown documents that the CLI renders with glamour when borgwrap fails
// in a way the user can fix (missing borg binary, bad config, bad options).
package issue
