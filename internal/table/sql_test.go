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
	"os"
	"path/filepath"
	"testing"
)

func TestBuildSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "morercpthosts.db")

	if err := BuildSQLite(ctx, path, []string{"example.org", ".example.com", "example.org"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}

	s, err := NewSQL(ctx, SQLConfig{
		Driver: "sqlite",
		DSN:    SQLiteDSN(path),
		Lookup: DefaultLookupQuery("sqlite"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for key, want := range map[string]bool{
		"example.org":  true,
		".example.com": true,
		"example.net":  false,
	} {
		_, ok, err := s.Lookup(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Errorf("Lookup(%q) = %v, want %v", key, ok, want)
		}
	}

	if err := s.SetKey(ctx, "example.net", ""); err == nil {
		t.Error("SetKey should fail on a table without add query")
	}
}

func TestBuildSQLiteReplaces(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "morercpthosts.db")

	if err := BuildSQLite(ctx, path, []string{"old.example"}); err != nil {
		t.Fatal(err)
	}
	if err := BuildSQLite(ctx, path, []string{"new.example"}); err != nil {
		t.Fatal(err)
	}

	s, err := NewSQL(ctx, SQLConfig{
		Driver: "sqlite",
		DSN:    SQLiteDSN(path),
		Lookup: DefaultLookupQuery("sqlite"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, ok, _ := s.Lookup(ctx, "old.example"); ok {
		t.Error("old entry survived rebuild")
	}
	if _, ok, _ := s.Lookup(ctx, "new.example"); !ok {
		t.Error("new entry missing")
	}
}

func TestNewSQLBadQuery(t *testing.T) {
	_, err := NewSQL(context.Background(), SQLConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "empty.db"),
		Lookup: DefaultLookupQuery("sqlite"),
	})
	if err == nil {
		t.Fatal("a lookup query against a missing table should fail at open")
	}
}

func TestDefaultLookupQuery(t *testing.T) {
	if DefaultLookupQuery("postgres") == DefaultLookupQuery("sqlite") {
		t.Fatal("postgres needs numbered placeholders")
	}
}
