// SPDX-License-Identifier: MPL-2.0

// Package tarsink writes a tar stream exported by borg to a file, compressed
// according to the file extension, and reports a BLAKE3 digest of the
// uncompressed stream.
package tarsink
