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

package rcptstatus

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	test := func(blob string, want []Record) {
		t.Helper()
		got := Parse([]byte(blob))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Parse(%q)\n want %+v\n got  %+v", blob, want, got)
		}
	}

	test("", nil)
	test("\x00", nil)
	test("Ta@example.org\x00", []Record{{StatusPending, "a@example.org"}})
	test("Ta@example.org\x00Db@example.org\x00", []Record{
		{StatusPending, "a@example.org"},
		{StatusDone, "b@example.org"},
	})
	// Missing terminator on the last record.
	test("Da@example.org\x00Tb@example.org", []Record{
		{StatusDone, "a@example.org"},
		{StatusPending, "b@example.org"},
	})
	// Parsing stops at an empty record.
	test("Ta@example.org\x00\x00Tb@example.org\x00", []Record{{StatusPending, "a@example.org"}})
	test("T\x00", []Record{{StatusPending, ""}})
}

func TestCountPending(t *testing.T) {
	for blob, want := range map[string]int{
		"":                                   0,
		"Da@x\x00":                           0,
		"Ta@x\x00Tb@x\x00Dc@x\x00":           2,
		"Ta@x\x00\x00Tb@x\x00":               1,
		"Xa@x\x00Tb@x":                       1,
		"Ta@x\x00Tb@x\x00Tc@x\x00Dd@x\x00Te": 4,
	} {
		if got := CountPending([]byte(blob)); got != want {
			t.Errorf("CountPending(%q) = %d, want %d", blob, got, want)
		}
	}
}

func TestEncodeCountRoundtrip(t *testing.T) {
	for n := 0; n < 10; n++ {
		for k := 0; k <= n; k++ {
			recs := make([]Record, n)
			for i := range recs {
				recs[i] = Record{Status: StatusDone, Addr: "rcpt@example.org"}
				if i < k {
					recs[i].Status = StatusPending
				}
			}
			blob := Encode(recs)
			if got := CountPending(blob); got != k {
				t.Fatalf("n=%d k=%d: CountPending = %d", n, k, got)
			}
			if got := len(PendingAddrs(Parse(blob))); got != k {
				t.Fatalf("n=%d k=%d: len(PendingAddrs) = %d", n, k, got)
			}
		}
	}
}

func TestStatusString(t *testing.T) {
	if StatusPending.String() != "pending" || StatusDone.String() != "done" {
		t.Error("wrong names for known statuses")
	}
	if Status('X').String() != `unknown("X")` {
		t.Errorf("wrong name for unknown status: %s", Status('X'))
	}
}
