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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qnotify/qmail-notify/framework/exterrors"
)

func captureLogger(debug bool) (Logger, *[]string) {
	var lines []string
	return Logger{
		Out: FuncOutput(func(_ time.Time, dbg bool, s string) {
			if dbg {
				s = "[debug] " + s
			}
			lines = append(lines, s)
		}, func() error { return nil }),
		Name:  "test",
		Debug: debug,
	}, &lines
}

func TestLoggerMsg(t *testing.T) {
	l, lines := captureLogger(false)
	l.Msg("notice sent", "sender", "a@example.org", "threshold", 4*time.Hour)

	want := `test: notice sent	{"sender":"a@example.org","threshold":"4h0m0s"}`
	if len(*lines) != 1 || (*lines)[0] != want {
		t.Fatalf("wrong output\nwant %q\n got %q", want, *lines)
	}
}

func TestLoggerDebugSuppressed(t *testing.T) {
	l, lines := captureLogger(false)
	l.DebugMsg("ignoring", "msg_id", "0/1")
	l.Debugf("ignoring %s", "0/1")
	if len(*lines) != 0 {
		t.Fatalf("debug messages written with Debug=false: %q", *lines)
	}

	l.Debug = true
	l.DebugMsg("ignoring", "msg_id", "0/1")
	if len(*lines) != 1 || !strings.HasPrefix((*lines)[0], "[debug] test: ignoring") {
		t.Fatalf("unexpected output: %q", *lines)
	}
}

func TestLoggerError(t *testing.T) {
	l, lines := captureLogger(false)
	err := exterrors.WithFields(errors.New("boom"), map[string]interface{}{"msg_id": "3/77"})
	l.Error("scan failed", err, "run_id", "x")

	want := `test: scan failed	{"msg_id":"3/77","reason":"boom","run_id":"x"}`
	if len(*lines) != 1 || (*lines)[0] != want {
		t.Fatalf("wrong output\nwant %q\n got %q", want, *lines)
	}

	l.Error("nothing", nil)
	if len(*lines) != 1 {
		t.Fatal("nil error should not be logged")
	}
}

func TestLoggerWithNamed(t *testing.T) {
	l, lines := captureLogger(false)
	l = l.Named("queue").With("run_id", "abc")
	l.Msg("scan started")
	l.Println("plain")

	if (*lines)[0] != `test/queue: scan started	{"run_id":"abc"}` {
		t.Errorf("wrong structured output: %q", (*lines)[0])
	}
	if (*lines)[1] != `test/queue: plain	{"run_id":"abc"}` {
		t.Errorf("wrong plain output: %q", (*lines)[1])
	}
}

func TestZapOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Out: ZapOutput(&buf), Name: "queue", Debug: true}
	l.DebugMsg("ignoring, has not yet expired", "msg_id", "0/1")

	m := map[string]interface{}{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if m["level"] != "debug" || m["logger"] != "queue" || m["msg_id"] != "0/1" ||
		m["msg"] != "ignoring, has not yet expired" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestParseOutput(t *testing.T) {
	if _, err := ParseOutput([]string{"stderr", "stderr_ts"}); err != nil {
		t.Fatal(err)
	}
	out, err := ParseOutput([]string{"off"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(NopOutput); !ok {
		t.Fatalf("off should produce NopOutput, got %T", out)
	}
	if _, err := ParseOutput([]string{"carrier-pigeon"}); err == nil {
		t.Fatal("unknown target accepted")
	}
}
