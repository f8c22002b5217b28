// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, MustUnsetenv),
// file and directory operations (MustChdir, MustMkdirAll, MustWriteFile) and
// resource cleanup (DeferClose). FakeBorg stands in for the borg
// executable using the helper-process pattern.
package testutil
