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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/qnotify/qmail-notify/framework/dns"
	"github.com/qnotify/qmail-notify/framework/log"
	"github.com/qnotify/qmail-notify/framework/module"
)

// File is a set of domains read once from a plain-text file in the
// rcpthosts format: one domain per line, lines starting with '#' and blank
// lines are ignored.
//
// Domains are stored in canonical form (see dns.ForLookup). A leading dot is
// preserved, qmail uses it to denote "any subdomain of".
type File struct {
	file string
	m    map[string]struct{}
	log  log.Logger
}

// NewFile loads the set from path. A missing file yields an empty set,
// same as qmail-smtpd treats a missing rcpthosts.
func NewFile(path string, logger log.Logger) (*File, error) {
	f := &File{
		file: path,
		m:    make(map[string]struct{}),
		log:  logger,
	}

	if err := readFile(path, f.m); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		f.log.Printf("ignoring non-existent file: %s", path)
	}
	f.log.DebugMsg("loaded domain list", "file", path, "entries", len(f.m))

	return f, nil
}

func readFile(path string, out map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scnr := bufio.NewScanner(f)
	for scnr.Scan() {
		text := strings.TrimSpace(scnr.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		out[CanonicalDomain(text)] = struct{}{}
	}
	if err := scnr.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// CanonicalDomain converts a table entry into the form used for lookups,
// keeping the qmail leading-dot wildcard marker.
func CanonicalDomain(entry string) string {
	prefix := ""
	if strings.HasPrefix(entry, ".") {
		prefix = "."
		entry = entry[1:]
	}
	// On error ForLookup still returns the lower-cased value, that is good
	// enough for a byte-wise match.
	domain, _ := dns.ForLookup(entry)
	return prefix + domain
}

func (f *File) Lookup(_ context.Context, key string) (string, bool, error) {
	_, ok := f.m[key]
	return "", ok, nil
}

// Len returns the amount of entries in the set.
func (f *File) Len() int {
	return len(f.m)
}

// Keys returns all entries in unspecified order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.m))
	for k := range f.m {
		keys = append(keys, k)
	}
	return keys
}

var _ module.Table = &File{}
