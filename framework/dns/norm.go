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

package dns

import (
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// ForLookup converts the domain into a canonical form suitable for table
// lookups and other comparisons.
//
// Use this instead of strings.ToLower to prepare domain for lookups.
//
// Domains that contain invalid UTF-8 or invalid A-labels are simply
// lower-cased, but the error is also returned.
func ForLookup(domain string) (string, error) {
	uDomain, err := idna.ToUnicode(domain)
	if err != nil {
		return strings.ToLower(domain), err
	}

	// strings.ToLower does not do full case-folding, NFC first.
	uDomain = norm.NFC.String(uDomain)
	uDomain = strings.ToLower(uDomain)
	uDomain = strings.TrimSuffix(uDomain, ".")
	return uDomain, nil
}

// Parents returns domain followed by each of its parent domains, removing
// one leftmost label at a time:
//
//	a.b.example.com -> [a.b.example.com b.example.com example.com com]
//
// The root domain and the empty string produce nil.
func Parents(domain string) []string {
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return nil
	}
	offsets := dns.Split(domain)
	if len(offsets) == 0 {
		return nil
	}
	res := make([]string, 0, len(offsets))
	for _, off := range offsets {
		res = append(res, domain[off:])
	}
	return res
}
