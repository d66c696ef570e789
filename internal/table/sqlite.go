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
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLiteDSN returns the read-only DSN for an indexed lookup file built by
// BuildSQLite.
func SQLiteDSN(path string) string {
	return "file:" + path + "?mode=ro"
}

// BuildSQLite compiles keys into a new sqlite database at path.
//
// The database is written to path + ".tmp" first and renamed over path
// once complete, so readers never observe a partially written file.
func BuildSQLite(ctx context.Context, path string, keys []string) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("table: %w", err)
	}

	s, err := NewSQL(ctx, SQLConfig{
		Driver: "sqlite",
		DSN:    "file:" + tmp,
		Init: []string{
			"PRAGMA journal_mode = OFF",
			"PRAGMA synchronous = OFF",
			"CREATE TABLE rcpthosts (domain TEXT PRIMARY KEY NOT NULL, value TEXT NOT NULL DEFAULT '') WITHOUT ROWID",
		},
		Lookup: DefaultLookupQuery("sqlite"),
		Add:    "INSERT OR REPLACE INTO rcpthosts (domain, value) VALUES (?, ?)",
	})
	if err != nil {
		os.Remove(tmp)
		return err
	}

	for _, k := range keys {
		if err := s.SetKey(ctx, k, ""); err != nil {
			s.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := s.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("table: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("table: %w", err)
	}
	return nil
}
