// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/borgwrap/borgwrap/cmd/borgwrap"

func main() {
	cmd.Execute()
}
