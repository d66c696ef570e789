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

package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Injection is a single invocation of the fake injector.
type Injection struct {
	Args []string
	Msg  string
}

// Injector is a shell script standing in for qmail-inject. Every invocation
// records its arguments and standard input in Dir.
type Injector struct {
	Path string
	Dir  string
}

// FakeInjector writes an injector script that consumes the message and
// exits with exitCode.
func FakeInjector(t *testing.T, exitCode int) Injector {
	t.Helper()
	return ScriptInjector(t, "cat > \"$dir/$n.msg\"\nexit "+strconv.Itoa(exitCode))
}

// ScriptInjector is FakeInjector with a custom tail. The script body can use
// $dir and $n to store its results.
func ScriptInjector(t *testing.T, body string) Injector {
	t.Helper()

	dir := t.TempDir()
	inj := Injector{
		Path: filepath.Join(dir, "qmail-inject"),
		Dir:  filepath.Join(dir, "out"),
	}
	if err := os.Mkdir(inj.Dir, 0o755); err != nil {
		t.Fatal(err)
	}

	script := fmt.Sprintf(`#!/bin/sh
dir='%s'
n=0
while [ -e "$dir/$n.args" ]; do n=$((n+1)); done
printf '%%s\n' "$@" > "$dir/$n.args"
%s
`, inj.Dir, body)
	if err := os.WriteFile(inj.Path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return inj
}

// Injections returns everything the injector received so far, in order.
func (inj Injector) Injections(t *testing.T) []Injection {
	t.Helper()

	var res []Injection
	for n := 0; ; n++ {
		args, err := os.ReadFile(filepath.Join(inj.Dir, strconv.Itoa(n)+".args"))
		if err != nil {
			if os.IsNotExist(err) {
				return res
			}
			t.Fatal(err)
		}
		msg, err := os.ReadFile(filepath.Join(inj.Dir, strconv.Itoa(n)+".msg"))
		if err != nil && !os.IsNotExist(err) {
			t.Fatal(err)
		}

		res = append(res, Injection{
			Args: strings.Split(strings.TrimSuffix(string(args), "\n"), "\n"),
			Msg:  string(msg),
		})
	}
}
