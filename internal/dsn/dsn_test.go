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

package dsn

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qnotify/qmail-notify/internal/rcptstatus"
	"github.com/qnotify/qmail-notify/internal/testutils"
)

func testComposer(opts Options) *Composer {
	if opts.Hostname == "" {
		opts.Hostname = "mx.example.org"
	}
	if opts.Lifetime == 0 {
		opts.Lifetime = 7 * 24 * time.Hour
	}
	c := New(opts)
	c.newBoundary = func() string { return "B" }
	return c
}

func testNotice() Notice {
	return Notice{
		Sender:    "alice@example.com",
		Threshold: 4 * time.Hour,
		Locals: []rcptstatus.Record{
			{Status: rcptstatus.StatusPending, Addr: "bob@example.org"},
			{Status: rcptstatus.StatusDone, Addr: "done@example.org"},
		},
		Remotes: []rcptstatus.Record{
			{Status: rcptstatus.StatusPending, Addr: "carol@example.net"},
		},
	}
}

func render(t *testing.T, c *Composer, n Notice) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(&buf, n); err != nil {
		t.Fatal("Render failed:", err)
	}
	return buf.String()
}

func TestRender_Plain(t *testing.T) {
	out := render(t, testComposer(Options{}), testNotice())

	want := "From: <MAILER-DAEMON@mx.example.org>\n" +
		"To: <alice@example.com>\n" +
		"Subject: delayed delivery notice\n" +
		"\n" +
		"Your message has been received by mx.example.org but has been\n" +
		"undeliverable to the following recipients for at least 4 hours.\n" +
		"The mail system will continue to attempt to deliver your message\n" +
		"to these recipients for a total of 7 days.  You do not need to\n" +
		"resend your message at this time.\n" +
		"\n" +
		"Recipient(s):\n" +
		"\tbob@example.org\n" +
		"\tcarol@example.net\n"
	if out != want {
		t.Errorf("wrong notice\nwant:\n%q\ngot:\n%q", want, out)
	}
}

func TestRender_Truncated(t *testing.T) {
	n := testNotice()
	n.Original = strings.NewReader(strings.Repeat("a", 10000))

	out := render(t, testComposer(Options{CopyBytes: 100}), n)

	wantTail := "\tcarol@example.net\n" +
		"\n--- Below this line is a copy of the original message.\n\n" +
		strings.Repeat("a", 100) + "[...]\n"
	if !strings.HasSuffix(out, wantTail) {
		t.Errorf("wrong tail: %q", out[len(out)-200:])
	}
	if strings.Contains(out, strings.Repeat("a", 101)) {
		t.Error("more than 100 bytes copied")
	}
}

func TestRender_ExactLimit(t *testing.T) {
	n := testNotice()
	n.Original = strings.NewReader(strings.Repeat("a", 100))

	out := render(t, testComposer(Options{CopyBytes: 100}), n)
	if !strings.HasSuffix(out, strings.Repeat("a", 100)+"[...]\n") {
		t.Errorf("marker is expected once the limit is reached: %q", out)
	}
}

func TestRender_Unlimited(t *testing.T) {
	n := testNotice()
	n.Original = strings.NewReader(strings.Repeat("a", 10000))

	out := render(t, testComposer(Options{CopyBytes: -1}), n)

	if !strings.HasSuffix(out, "original message.\n\n"+strings.Repeat("a", 10000)+"\n") {
		t.Error("message is not copied completely")
	}
	if strings.Contains(out, TruncationMarker) {
		t.Error("unexpected truncation marker")
	}
}

func TestRender_MIME(t *testing.T) {
	original := "Subject: hi\n\nbody\n"
	n := testNotice()
	n.Original = strings.NewReader(original)

	out := render(t, testComposer(Options{MIME: true, CopyBytes: -1}), n)

	wantHead := "From: <MAILER-DAEMON@mx.example.org>\n" +
		"To: <alice@example.com>\n" +
		"Subject: delayed delivery notice\n" +
		"MIME-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=\"B\"\n" +
		"\n" +
		"This is a multi-part message in MIME format.\n" +
		"(If you can see this message, your E-mail client is not MIME compatible.)\n" +
		"--B\n" +
		"Content-Type: text/plain; charset=us-ascii\n" +
		"Content-Transfer-Encoding: 7bit\n" +
		"\n" +
		"Your message has been received"
	if !strings.HasPrefix(out, wantHead) {
		t.Errorf("wrong head:\n%s", out)
	}

	wantTail := "\tcarol@example.net\n" +
		"\n" +
		"The following attachment contains a copy of the original message.\n" +
		"\n" +
		"--B\n" +
		"Content-Type: message/rfc822\n" +
		"Content-Disposition: inline\n" +
		"\n" +
		original +
		"\n--B--\n"
	if !strings.HasSuffix(out, wantTail) {
		t.Errorf("wrong tail:\n%s", out)
	}
}

func TestRender_MIMENoCopy(t *testing.T) {
	out := render(t, testComposer(Options{MIME: true}), testNotice())
	if strings.Contains(out, "--B--") {
		t.Error("closing boundary written without an attachment")
	}
	if !strings.HasSuffix(out, "\tcarol@example.net\n") {
		t.Errorf("wrong tail:\n%s", out)
	}
}

func TestRender_ReadError(t *testing.T) {
	n := testNotice()
	n.Original = testutils.FailingReader([]byte("Subject: hi\n\nbody"), errors.New("read error"))

	var buf bytes.Buffer
	if err := testComposer(Options{CopyBytes: -1}).Render(&buf, n); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRender_MissingOriginal(t *testing.T) {
	var buf bytes.Buffer
	if err := testComposer(Options{CopyBytes: -1}).Render(&buf, testNotice()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRender_Template(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice.tmpl")
	body := "{{.Sender}} sent {{.Subject}} {{.MessageID}}, waiting {{.Age}} for {{len .Recipients}}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	tmpl, err := LoadTemplate(path)
	if err != nil {
		t.Fatal(err)
	}

	original := "Subject: Hello\nMessage-Id: <1@example.com>\n\nbody\n"
	n := testNotice()
	n.Original = strings.NewReader(original)

	out := render(t, testComposer(Options{Body: tmpl, CopyBytes: -1}), n)

	if !strings.Contains(out, "\nalice@example.com sent Hello <1@example.com>, waiting 4 hours for 2\n") {
		t.Errorf("template not applied:\n%s", out)
	}
	// Header parsing must not consume the copied message.
	if !strings.HasSuffix(out, "\n\n"+original+"\n") {
		t.Errorf("original message is not copied from the start:\n%s", out)
	}
}

func TestLoadTemplate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice.tmpl")
	if err := os.WriteFile(path, []byte("{{.Sender"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTemplate(path); err == nil {
		t.Fatal("expected a parse error")
	}
	if _, err := LoadTemplate(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestHumanDuration(t *testing.T) {
	for d, want := range map[time.Duration]string{
		0:                            "0 seconds",
		time.Second:                  "1 second",
		1500 * time.Millisecond:      "1 second",
		59 * time.Second:             "59 seconds",
		90 * time.Second:             "1 minute",
		3*time.Hour + 59*time.Minute: "3 hours",
		25 * time.Hour:               "1 day",
		7 * 24 * time.Hour:           "7 days",
	} {
		if got := HumanDuration(d); got != want {
			t.Errorf("HumanDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestBoundary(t *testing.T) {
	a := boundary(rand.New(rand.NewSource(1)))
	b := boundary(rand.New(rand.NewSource(1)))
	if a != b {
		t.Error("boundary is not deterministic for the same seed")
	}
	if len(a) != 64 {
		t.Fatal("wrong boundary length:", len(a))
	}
	for _, ch := range a {
		if !strings.ContainsRune(boundaryChars, ch) {
			t.Fatalf("unexpected character %q in boundary", ch)
		}
	}
	if len(NewBoundary()) != 64 {
		t.Error("wrong NewBoundary length")
	}
}
