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

package table

import (
	"context"

	"github.com/qnotify/qmail-notify/framework/module"
)

// Static is an in-memory table, mostly useful in tests.
type Static struct {
	m map[string]string
}

func NewStatic(m map[string]string) *Static {
	if m == nil {
		m = map[string]string{}
	}
	return &Static{m: m}
}

func (s *Static) Lookup(_ context.Context, key string) (string, bool, error) {
	val, ok := s.m[key]
	return val, ok, nil
}

func (s *Static) SetKey(_ context.Context, k, v string) error {
	s.m[k] = v
	return nil
}

var _ module.MutableTable = &Static{}
