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

// Package rcptfilter decides whether a message sender may receive a delay
// notice, based on the domains the mail system accepts mail for (qmail's
// rcpthosts and morercpthosts).
package rcptfilter

import (
	"context"
	"fmt"

	"github.com/qnotify/qmail-notify/framework/address"
	"github.com/qnotify/qmail-notify/framework/dns"
	"github.com/qnotify/qmail-notify/framework/exterrors"
	"github.com/qnotify/qmail-notify/framework/log"
	"github.com/qnotify/qmail-notify/framework/module"
)

// Filter permits senders whose domain, or any parent of it, is present in
// one of the tables. A Filter without tables is disabled and permits
// everybody.
type Filter struct {
	tables []module.Table
	log    log.Logger
}

func New(logger log.Logger, tables ...module.Table) *Filter {
	return &Filter{tables: tables, log: logger}
}

// Enabled reports whether the filter restricts anything.
func (f *Filter) Enabled() bool {
	return len(f.tables) != 0
}

// Allowed reports whether a notice may be sent to sender.
//
// The domain is checked as is and then with leftmost labels removed one by
// one, first match wins. At every level except the first the qmail wildcard
// form (".example.com") is checked too. The domain starts after the first
// at-sign and senders without one are rejected. Errors are returned only if a table lookup fails.
func (f *Filter) Allowed(ctx context.Context, sender string) (bool, error) {
	if !f.Enabled() {
		return true, nil
	}

	domain, ok := address.Domain(sender)
	if !ok {
		f.log.DebugMsg("no domain in sender", "sender", sender)
		return false, nil
	}
	domain, err := dns.ForLookup(domain)
	if err != nil {
		f.log.DebugMsg("malformed sender domain, using as is", "sender", sender, "reason", err)
	}

	for i, candidate := range dns.Parents(domain) {
		keys := []string{candidate}
		if i != 0 {
			keys = append(keys, "."+candidate)
		}

		for _, key := range keys {
			ok, err := f.lookup(ctx, key)
			if err != nil {
				return false, exterrors.WithFields(err, map[string]interface{}{
					"sender": sender,
					"domain": key,
				})
			}
			if ok {
				f.log.DebugMsg("sender domain allowed", "sender", sender, "matched", key)
				return true, nil
			}
		}
	}

	return false, nil
}

func (f *Filter) lookup(ctx context.Context, key string) (bool, error) {
	for _, tbl := range f.tables {
		_, ok, err := tbl.Lookup(ctx, key)
		if err != nil {
			return false, fmt.Errorf("rcptfilter: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
