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
	"database/sql"
	"errors"
	"fmt"

	"github.com/qnotify/qmail-notify/framework/module"
)

// SQLConfig describes an SQL-backed table.
type SQLConfig struct {
	// Driver is the database/sql driver name: "sqlite" (pure Go), "sqlite3"
	// (CGo builds only), "postgres" or "mysql".
	Driver string
	DSN    string

	// Init queries are executed once after the connection is opened.
	Init []string

	// Lookup takes the key as the only argument and returns at most one
	// row with one column.
	Lookup string

	// Add takes key and value and inserts or replaces the row. Optional,
	// the table is read-only without it.
	Add string
}

// DefaultLookupQuery returns the query used against the schema created by
// BuildSQLite, with placeholders suitable for driver.
func DefaultLookupQuery(driver string) string {
	if driver == "postgres" {
		return "SELECT value FROM rcpthosts WHERE domain = $1"
	}
	return "SELECT value FROM rcpthosts WHERE domain = ?"
}

type SQL struct {
	driver string
	db     *sql.DB
	lookup *sql.Stmt
	add    *sql.Stmt
}

func NewSQL(ctx context.Context, cfg SQLConfig) (*SQL, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("table: failed to open db: %w", err)
	}
	if cfg.Driver == "sqlite" || cfg.Driver == "sqlite3" {
		// Init queries set per-connection pragmas.
		db.SetMaxOpenConns(1)
	}

	s := &SQL{driver: cfg.Driver, db: db}
	if err := s.prepare(ctx, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) prepare(ctx context.Context, cfg SQLConfig) error {
	for _, init := range cfg.Init {
		if _, err := s.db.ExecContext(ctx, init); err != nil {
			return fmt.Errorf("table: init query failed: %w", err)
		}
	}

	var err error
	s.lookup, err = s.db.PrepareContext(ctx, cfg.Lookup)
	if err != nil {
		return fmt.Errorf("table: failed to prepare lookup query: %w", err)
	}
	// Some drivers compile the statement only when it first runs, check
	// the schema now instead of at the first lookup.
	var probe sql.NullString
	if err := s.lookup.QueryRowContext(ctx, "").Scan(&probe); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("table: failed to run lookup query: %w", err)
	}
	if cfg.Add != "" {
		s.add, err = s.db.PrepareContext(ctx, cfg.Add)
		if err != nil {
			return fmt.Errorf("table: failed to prepare add query: %w", err)
		}
	}
	return nil
}

func (s *SQL) Close() error {
	if s.lookup != nil {
		s.lookup.Close()
	}
	if s.add != nil {
		s.add.Close()
	}
	return s.db.Close()
}

func (s *SQL) Lookup(ctx context.Context, key string) (string, bool, error) {
	var val sql.NullString
	if err := s.lookup.QueryRowContext(ctx, key).Scan(&val); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("table: %s: lookup %s: %w", s.driver, key, err)
	}
	return val.String, true, nil
}

func (s *SQL) SetKey(ctx context.Context, k, v string) error {
	if s.add == nil {
		return fmt.Errorf("table: %s: table is not mutable (no add query)", s.driver)
	}
	if _, err := s.add.ExecContext(ctx, k, v); err != nil {
		return fmt.Errorf("table: %s: add %s: %w", s.driver, k, err)
	}
	return nil
}

var _ module.MutableTable = &SQL{}
