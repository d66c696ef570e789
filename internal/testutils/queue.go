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

package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qnotify/qmail-notify/internal/rcptstatus"
)

// QueueMessage describes a message to place into a test queue.
type QueueMessage struct {
	Bucket string
	ID     string

	Sender  string
	Created time.Time

	// Nil lists are not written at all.
	Local  []rcptstatus.Record
	Remote []rcptstatus.Record

	// Body is written to mess/ unless NoBody is set.
	Body   string
	NoBody bool
}

// WriteQueueMessage writes msg into a qmail-style queue at root, creating
// the directories as needed.
func WriteQueueMessage(t *testing.T, root string, msg QueueMessage) {
	t.Helper()

	write := func(dir string, blob []byte) string {
		t.Helper()
		path := filepath.Join(root, dir, msg.Bucket, msg.ID)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, blob, 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	if !msg.NoBody {
		write("mess", []byte(msg.Body))
	}
	if msg.Local != nil {
		write("local", rcptstatus.Encode(msg.Local))
	}
	if msg.Remote != nil {
		write("remote", rcptstatus.Encode(msg.Remote))
	}

	info := write("info", []byte("F"+msg.Sender+"\x00"))
	if err := os.Chtimes(info, msg.Created, msg.Created); err != nil {
		t.Fatal(err)
	}
}

// Pending is a shorthand for a list of pending recipients.
func Pending(addrs ...string) []rcptstatus.Record {
	res := make([]rcptstatus.Record, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, rcptstatus.Record{Status: rcptstatus.StatusPending, Addr: a})
	}
	return res
}
