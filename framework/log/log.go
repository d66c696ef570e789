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

// Package log implements the small structured logger used across
// qmail-notify.
//
// Messages are written as "name: text\t{json fields}" so that both humans
// reading cron mail and scripts grepping syslog can make sense of them.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/qnotify/qmail-notify/framework/exterrors"
)

// Logger writes formatted messages to the underlying Output.
//
// Logger is a value type and can be copied freely to derive named
// sub-loggers. The Output is shared between copies.
type Logger struct {
	Out   Output
	Name  string
	Debug bool

	// Fields are added to every structured message written by this Logger.
	Fields map[string]interface{}
}

// Named returns a copy of the Logger with name appended to the current one.
func (l Logger) Named(name string) Logger {
	if l.Name != "" {
		name = l.Name + "/" + name
	}
	l.Name = name
	return l
}

// With returns a copy of the Logger that adds the given key-value pairs to
// every structured message.
func (l Logger) With(fields ...interface{}) Logger {
	merged := make(map[string]interface{}, len(l.Fields)+len(fields)/2)
	for k, v := range l.Fields {
		merged[k] = v
	}
	fieldsToMap(fields, merged)
	l.Fields = merged
	return l
}

func (l Logger) Debugf(format string, val ...interface{}) {
	if !l.Debug {
		return
	}
	l.log(true, l.formatMsg(fmt.Sprintf(format, val...), nil))
}

func (l Logger) Printf(format string, val ...interface{}) {
	l.log(false, l.formatMsg(fmt.Sprintf(format, val...), nil))
}

func (l Logger) Println(val ...interface{}) {
	l.log(false, l.formatMsg(strings.TrimRight(fmt.Sprintln(val...), "\n"), nil))
}

// Msg writes an event with key-value fields in machine-readable form:
//
//	name: msg\t{"key":"value","key2":"value2"}
//
// fields must alternate between string keys and values. Values implementing
// LogFormatter, fmt.Stringer or error are written using the corresponding
// method; time.Time is written in ISO 8601 form.
func (l Logger) Msg(msg string, fields ...interface{}) {
	m := make(map[string]interface{}, len(fields)/2)
	fieldsToMap(fields, m)
	l.log(false, l.formatMsg(msg, m))
}

// DebugMsg is Msg that is only written if debug logging is enabled.
func (l Logger) DebugMsg(msg string, fields ...interface{}) {
	if !l.Debug {
		return
	}
	m := make(map[string]interface{}, len(fields)/2)
	fieldsToMap(fields, m)
	l.log(true, l.formatMsg(msg, m))
}

// Error writes an event describing err. Fields attached to err (or to any
// error it wraps) using exterrors.WithFields are included, followed by the
// explicitly passed fields.
//
// msg should name the operation during which the error was handled, e.g.
// "queue scan failed".
func (l Logger) Error(msg string, err error, fields ...interface{}) {
	if err == nil {
		return
	}

	errFields := exterrors.Fields(err)
	allFields := make(map[string]interface{}, len(fields)/2+len(errFields)+1)
	for k, v := range errFields {
		allFields[k] = v
	}
	if allFields["reason"] == nil {
		allFields["reason"] = err.Error()
	}
	fieldsToMap(fields, allFields)

	l.log(false, l.formatMsg(msg, allFields))
}

func fieldsToMap(fields []interface{}, out map[string]interface{}) {
	var lastKey string
	for i, val := range fields {
		if i%2 == 0 {
			key, ok := val.(string)
			if !ok {
				out[fmt.Sprint("field", i)] = val
				lastKey = fmt.Sprint("field", i+1)
				continue
			}
			lastKey = key
		} else {
			out[lastKey] = val
		}
	}
}

func (l Logger) formatMsg(msg string, fields map[string]interface{}) string {
	formatted := strings.Builder{}
	formatted.WriteString(msg)

	if len(l.Fields)+len(fields) == 0 {
		return formatted.String()
	}

	if fields == nil {
		fields = make(map[string]interface{}, len(l.Fields))
	}
	for k, v := range l.Fields {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}

	formatted.WriteRune('\t')
	if err := marshalOrderedJSON(&formatted, fields); err != nil {
		return fmt.Sprintf("[BROKEN FORMATTING: %v] %v %+v", err, msg, fields)
	}
	return formatted.String()
}

type LogFormatter interface {
	FormatLog() string
}

// Write implements io.Writer, each call is written as a separate message.
func (l Logger) Write(s []byte) (int, error) {
	l.log(false, strings.TrimRight(string(s), "\n"))
	return len(s), nil
}

// DebugWriter returns a writer that logs as debug messages or discards
// everything if debug logging is disabled.
func (l Logger) DebugWriter() io.Writer {
	if !l.Debug {
		return io.Discard
	}
	return debugWriter{l}
}

type debugWriter struct {
	l Logger
}

func (w debugWriter) Write(s []byte) (int, error) {
	w.l.log(true, strings.TrimRight(string(s), "\n"))
	return len(s), nil
}

func (l Logger) log(debug bool, s string) {
	if l.Name != "" {
		s = l.Name + ": " + s
	}

	out := l.Out
	if out == nil {
		out = DefaultLogger.Out
	}
	if out == nil {
		return
	}
	out.Write(time.Now(), debug, s)
}

// DefaultLogger is used by package-level functions and as a fallback
// Output for Loggers that have none set.
var DefaultLogger = Logger{Name: "qmail-notify", Out: WriterOutput(os.Stderr, false)}

func Debugf(format string, val ...interface{}) { DefaultLogger.Debugf(format, val...) }
func Printf(format string, val ...interface{}) { DefaultLogger.Printf(format, val...) }
func Println(val ...interface{})               { DefaultLogger.Println(val...) }
