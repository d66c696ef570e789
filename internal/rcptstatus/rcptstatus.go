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

// Package rcptstatus parses the per-recipient delivery status files kept by
// qmail-send in queue/local and queue/remote.
//
// Each file is a sequence of records, one per recipient:
//
//	<status byte><address>\0
//
// qmail-send writes 'T' for recipients it still has to deliver to and
// rewrites the byte to 'D' in place once delivery succeeded or failed
// permanently.
package rcptstatus

import (
	"bytes"
	"strconv"
)

type Status byte

const (
	// StatusPending marks a recipient delivery is still being attempted to.
	StatusPending Status = 'T'
	// StatusDone marks a recipient that was delivered or bounced.
	StatusDone Status = 'D'
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	default:
		return "unknown(" + strconv.Quote(string(rune(s))) + ")"
	}
}

type Record struct {
	Status Status
	Addr   string
}

func (r Record) Pending() bool {
	return r.Status == StatusPending
}

// Parse splits blob into records.
//
// Parsing stops at the end of blob or at a record that starts with NUL. A
// final record without the terminating NUL is returned as is. Parse never
// looks beyond len(blob).
func Parse(blob []byte) []Record {
	var res []Record
	for len(blob) != 0 && blob[0] != 0 {
		rec := blob
		if end := bytes.IndexByte(blob, 0); end != -1 {
			rec = blob[:end]
			blob = blob[end+1:]
		} else {
			blob = nil
		}

		res = append(res, Record{
			Status: Status(rec[0]),
			Addr:   string(rec[1:]),
		})
	}
	return res
}

// CountPending returns the amount of pending recipients in blob without
// allocating the records.
func CountPending(blob []byte) int {
	count := 0
	for len(blob) != 0 && blob[0] != 0 {
		if Status(blob[0]) == StatusPending {
			count++
		}
		end := bytes.IndexByte(blob, 0)
		if end == -1 {
			break
		}
		blob = blob[end+1:]
	}
	return count
}

// PendingAddrs returns the addresses of pending records in their original
// order.
func PendingAddrs(recs []Record) []string {
	var addrs []string
	for _, r := range recs {
		if r.Pending() {
			addrs = append(addrs, r.Addr)
		}
	}
	return addrs
}

// Encode is the inverse of Parse.
func Encode(recs []Record) []byte {
	var buf bytes.Buffer
	for _, r := range recs {
		buf.WriteByte(byte(r.Status))
		buf.WriteString(r.Addr)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
