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

package module

import "context"

// Table is implemented by key-value lookup sources such as the rcpthosts
// file or an indexed database.
type Table interface {
	Lookup(ctx context.Context, s string) (string, bool, error)
}

// MutableTable is implemented by tables that can be filled by the
// qmail-notify tools, e.g. the sqlite file compiled by 'newmrh'.
type MutableTable interface {
	Table
	SetKey(ctx context.Context, k, v string) error
}
