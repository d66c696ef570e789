/*
qmail-notify - Delayed delivery notices for the qmail queue.
Copyright © 2024 qmail-notify contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package clitools has small helpers for interactive subcommands.
package clitools

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

var stdinScanner = bufio.NewScanner(os.Stdin)

// Confirmation asks a yes/no question on stderr and reads the answer from
// stdin. An empty or unrecognized answer selects def.
func Confirmation(prompt string, def bool) bool {
	return confirm(stdinScanner, os.Stderr, prompt, def)
}

func confirm(in *bufio.Scanner, out io.Writer, prompt string, def bool) bool {
	selection := "y/N"
	if def {
		selection = "Y/n"
	}

	fmt.Fprintf(out, "%s [%s]: ", prompt, selection)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			fmt.Fprintln(out, err)
		}
		return false
	}

	switch in.Text() {
	case "Y", "y", "yes":
		return true
	case "N", "n", "no":
		return false
	default:
		return def
	}
}
