// SPDX-License-Identifier: MPL-2.0

// Package output encodes borg results for the CLI in JSON, YAML, CBOR or
// plain text.
package output
