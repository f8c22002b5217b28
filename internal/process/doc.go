// SPDX-License-Identifier: MPL-2.0

// Package process runs an external executable and captures its output.
//
// Engine supports three modes: Run waits for the process and returns the full
// Capture, Start returns a live Handle whose StreamBuffers can be drained line
// by line while the process runs, and RunInteractive attaches the process to a
// pseudo terminal. A nonzero exit status is data, not an error; only launch
// failures are reported as errors.
package process
