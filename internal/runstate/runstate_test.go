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

package runstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadMissing(t *testing.T) {
	stamp, err := Read(filepath.Join(t.TempDir(), "qmail-notify.time"))
	if err != nil {
		t.Fatal(err)
	}
	if stamp.Unix() != 0 {
		t.Fatalf("missing file should read as epoch, got %v", stamp.Unix())
	}
}

func TestReadContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qmail-notify.time")
	for contents, want := range map[string]int64{
		"1700000000":     1700000000,
		"1700000000\n":   1700000000,
		"1700000000\nxx": 1700000000,
		"":               0,
		"garbage":        0,
		"17000x":         0,
		" 1700000000":    1700000000,
		"1700000000 ":    0,
	} {
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
		stamp, err := Read(path)
		if err != nil {
			t.Fatalf("%q: %v", contents, err)
		}
		if stamp.Unix() != want {
			t.Errorf("%q: got %d, want %d", contents, stamp.Unix(), want)
		}
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qmail-notify.time")

	// Longer contents must be fully replaced.
	if err := os.WriteFile(path, []byte("99999999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1700000123, 456)
	if err := Write(path, now); err != nil {
		t.Fatal(err)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != "1700000123" {
		t.Fatalf("wrong file contents: %q", blob)
	}

	stamp, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !stamp.Equal(time.Unix(1700000123, 0)) {
		t.Fatalf("wrong stamp read back: %v", stamp)
	}
}

func TestWriteUnwritable(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing-dir", "qmail-notify.time"), time.Now())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
