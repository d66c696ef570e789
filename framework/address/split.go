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

import "strings"

// DoubleBounce is the envelope sender qmail-send uses for double bounces.
const DoubleBounce = "#@[]"

// Domain returns everything after the first at-sign of an envelope
// address. The local part may be empty. ok is false if there is no
// at-sign or nothing follows it.
//
// "a@b@example.org" has the domain "b@example.org", which never matches
// an allow list entry for example.org.
func Domain(addr string) (domain string, ok bool) {
	_, domain, found := strings.Cut(addr, "@")
	if !found || domain == "" {
		return "", false
	}
	return domain, true
}

// IsNull reports whether addr is a null reverse-path, either the empty
// one used by bounces or qmail's double bounce sender. Nothing should ever
// be sent back to such address.
func IsNull(addr string) bool {
	return addr == "" || addr == "<>" || addr == DoubleBounce
}
