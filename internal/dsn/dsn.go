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

// Package dsn renders delayed delivery notices.
//
// Notices are plain RFC 5322 messages with LF line endings, in the format
// qmail-inject expects on its standard input. Optionally the notice is a
// multipart/mixed message with the original message attached as
// message/rfc822.
package dsn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"text/template"
	"time"

	"github.com/emersion/go-message/textproto"
	"github.com/qnotify/qmail-notify/internal/rcptstatus"
)

const copyChunkSize = 4096

// TruncationMarker is appended to the copy of the original message if it
// was cut at the configured byte limit.
const TruncationMarker = "[...]"

const (
	noticeHeader = "From: <MAILER-DAEMON@%s>\n" +
		"To: <%s>\n" +
		"Subject: delayed delivery notice\n"

	mimeHeader = "MIME-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=\"%s\"\n" +
		"\n" +
		"This is a multi-part message in MIME format.\n" +
		"(If you can see this message, your E-mail client is not MIME compatible.)\n" +
		"--%s\n" +
		"Content-Type: text/plain; charset=us-ascii\n" +
		"Content-Transfer-Encoding: 7bit\n"

	recipientsPrefix = "\nRecipient(s):\n"

	messageSeparator = "\n" +
		"--- Below this line is a copy of the original message.\n" +
		"\n"

	mimeMessageSeparator = "\n" +
		"The following attachment contains a copy of the original message.\n" +
		"\n" +
		"--%s\n" +
		"Content-Type: message/rfc822\n" +
		"Content-Disposition: inline\n" +
		"\n"

	mimeMessageEnd = "\n--%s--"
)

// DefaultBody is the human-readable text of the notice.
var DefaultBody = template.Must(template.New("notice").Parse(
	`Your message has been received by {{.Hostname}} but has been
undeliverable to the following recipients for at least {{.Age}}.
The mail system will continue to attempt to deliver your message
to these recipients for a total of {{.Lifetime}}.  You do not need to
resend your message at this time.
`))

// LoadTemplate reads a replacement for DefaultBody. The file uses
// text/template syntax, the available fields are those of BodyData.
func LoadTemplate(path string) (*template.Template, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dsn: %w", err)
	}
	tmpl, err := template.New("notice").Parse(string(blob))
	if err != nil {
		return nil, fmt.Errorf("dsn: %s: %w", path, err)
	}
	return tmpl, nil
}

// BodyData is passed to the body template.
type BodyData struct {
	// Hostname is the mail system name from control/me.
	Hostname string
	Sender   string

	// Age and Lifetime are already formatted with HumanDuration.
	Age      string
	Lifetime string

	// Pending recipients, local ones first.
	Recipients []string

	// Taken from the original message header, empty if unavailable.
	Subject   string
	MessageID string
	Date      string
}

type Options struct {
	Hostname string
	Lifetime time.Duration
	MIME     bool

	// CopyBytes limits the amount of the original message copied into the
	// notice. Negative means the whole message, zero disables the copy.
	CopyBytes int64

	// Body replaces DefaultBody if not nil.
	Body *template.Template
}

// Notice describes one message a notice is rendered for.
type Notice struct {
	Sender    string
	Threshold time.Duration
	Locals    []rcptstatus.Record
	Remotes   []rcptstatus.Record

	// Original is the queued message. It is required if CopyBytes is not
	// zero and used to fill header-derived BodyData fields otherwise.
	Original io.ReadSeeker
}

type Composer struct {
	opts        Options
	body        *template.Template
	newBoundary func() string
}

func New(opts Options) *Composer {
	body := opts.Body
	if body == nil {
		body = DefaultBody
	}
	return &Composer{
		opts:        opts,
		body:        body,
		newBoundary: NewBoundary,
	}
}

// Render writes the complete notice to w.
func (c *Composer) Render(w io.Writer, n Notice) error {
	if c.opts.CopyBytes != 0 && n.Original == nil {
		return errors.New("dsn: original message is required to include a copy of it")
	}

	data := BodyData{
		Hostname: c.opts.Hostname,
		Sender:   n.Sender,
		Age:      HumanDuration(n.Threshold),
		Lifetime: HumanDuration(c.opts.Lifetime),
	}
	data.Recipients = append(rcptstatus.PendingAddrs(n.Locals), rcptstatus.PendingAddrs(n.Remotes)...)
	if n.Original != nil {
		if err := readOriginalHeader(n.Original, &data); err != nil {
			return err
		}
	}

	out := bufio.NewWriter(w)

	fmt.Fprintf(out, noticeHeader, c.opts.Hostname, n.Sender)
	var boundary string
	if c.opts.MIME {
		boundary = c.newBoundary()
		fmt.Fprintf(out, mimeHeader, boundary, boundary)
	}
	out.WriteString("\n")

	if err := c.body.Execute(out, data); err != nil {
		return fmt.Errorf("dsn: body template: %w", err)
	}

	out.WriteString(recipientsPrefix)
	for _, rcpt := range data.Recipients {
		fmt.Fprintf(out, "\t%s\n", rcpt)
	}

	if c.opts.CopyBytes != 0 {
		if err := c.copyMessage(out, n.Original, boundary); err != nil {
			return err
		}
	}

	if err := out.Flush(); err != nil {
		return fmt.Errorf("dsn: %w", err)
	}
	return nil
}

func (c *Composer) copyMessage(out *bufio.Writer, original io.Reader, boundary string) error {
	if c.opts.MIME {
		fmt.Fprintf(out, mimeMessageSeparator, boundary)
	} else {
		out.WriteString(messageSeparator)
	}

	copied, err := copyLimited(out, original, c.opts.CopyBytes)
	if err != nil {
		return fmt.Errorf("dsn: copy original message: %w", err)
	}
	if c.opts.CopyBytes > 0 && copied >= c.opts.CopyBytes {
		out.WriteString(TruncationMarker)
	}

	if c.opts.MIME {
		fmt.Fprintf(out, mimeMessageEnd, boundary)
	}
	out.WriteString("\n")
	return nil
}

// copyLimited copies src to dst in chunks until src is exhausted or limit
// bytes were copied. Negative limit means no limit.
func copyLimited(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var total int64
	for limit < 0 || total < limit {
		chunk := buf
		if limit >= 0 && limit-total < int64(len(chunk)) {
			chunk = chunk[:limit-total]
		}

		n, err := io.ReadFull(src, chunk)
		if n > 0 {
			if _, werr := dst.Write(chunk[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readOriginalHeader(original io.ReadSeeker, data *BodyData) error {
	hdr, err := textproto.ReadHeader(bufio.NewReader(original))
	if err == nil {
		data.Subject = hdr.Get("Subject")
		data.MessageID = hdr.Get("Message-Id")
		data.Date = hdr.Get("Date")
	}
	// A malformed header does not prevent the notice, the fields are just
	// left empty.

	if _, err := original.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("dsn: rewind original message: %w", err)
	}
	return nil
}

// HumanDuration formats d in the largest whole unit that fits, truncating
// the rest: days, hours, minutes or seconds.
func HumanDuration(d time.Duration) string {
	secs := int64(d / time.Second)

	var amount int64
	var unit string
	switch {
	case secs >= 24*60*60:
		amount, unit = secs/(24*60*60), "day"
	case secs >= 60*60:
		amount, unit = secs/(60*60), "hour"
	case secs >= 60:
		amount, unit = secs/60, "minute"
	default:
		amount, unit = secs, "second"
	}

	if amount != 1 {
		unit += "s"
	}
	return strconv.FormatInt(amount, 10) + " " + unit
}

const boundaryChars = "0123456789ABCDEFHIJKLMNOPQRTUVWX"

// NewBoundary returns a random 64 character MIME boundary.
func NewBoundary() string {
	rnd := rand.New(rand.NewSource(time.Now().UnixMicro() ^ int64(os.Getpid())))
	return boundary(rnd)
}

func boundary(rnd *rand.Rand) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = boundaryChars[rnd.Intn(len(boundaryChars))]
	}
	return string(b)
}
