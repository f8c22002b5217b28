// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the borgwrap command line interface.
package cmd
