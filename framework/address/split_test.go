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

package address

import (
	"testing"
)

func TestDomain(t *testing.T) {
	for addr, want := range map[string]string{
		"simple@example.org":     "example.org",
		"@example.org":           "example.org",
		"a@evil.org@example.org": "evil.org@example.org",
		`"a@b"@example.org`:      `b"@example.org`,
		"no-domain@":             "",
		"nodomain":               "",
		"":                       "",
		"postmaster":             "",
	} {
		got, ok := Domain(addr)
		if got != want {
			t.Errorf("Domain(%q) = %q, want %q", addr, got, want)
		}
		if ok != (want != "") {
			t.Errorf("Domain(%q) ok = %v", addr, ok)
		}
	}
}

func TestIsNull(t *testing.T) {
	for addr, want := range map[string]bool{
		"":                 true,
		"<>":               true,
		"#@[]":             true,
		"user@example.org": false,
	} {
		if got := IsNull(addr); got != want {
			t.Errorf("IsNull(%q) = %v, want %v", addr, got, want)
		}
	}
}
