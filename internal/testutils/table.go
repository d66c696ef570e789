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

import "context"

// Table is a module.Table backed by a map. Err, if set, is returned from
// every lookup.
type Table struct {
	M   map[string]string
	Err error
}

func (m Table) Lookup(_ context.Context, a string) (string, bool, error) {
	b, ok := m.M[a]
	return b, ok, m.Err
}
