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
	"fmt"
	"os"
	"time"
)

type Output interface {
	Write(stamp time.Time, debug bool, msg string)
	Close() error
}

type multiOut struct {
	outs []Output
}

func (m multiOut) Write(stamp time.Time, debug bool, msg string) {
	for _, out := range m.outs {
		out.Write(stamp, debug, msg)
	}
}

func (m multiOut) Close() error {
	var firstErr error
	for _, out := range m.outs {
		if err := out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func MultiOutput(outputs ...Output) Output {
	if len(outputs) == 1 {
		return outputs[0]
	}
	return multiOut{outputs}
}

type funcOut struct {
	out   func(time.Time, bool, string)
	close func() error
}

func (f funcOut) Write(stamp time.Time, debug bool, msg string) {
	f.out(stamp, debug, msg)
}

func (f funcOut) Close() error {
	return f.close()
}

func FuncOutput(f func(time.Time, bool, string), close func() error) Output {
	return funcOut{f, close}
}

type NopOutput struct{}

func (NopOutput) Write(time.Time, bool, string) {}

func (NopOutput) Close() error { return nil }

// ParseOutput builds an Output from the list of target names accepted by
// the --log flag:
//
//	stderr     plain lines on stderr
//	stderr_ts  same, prefixed with UTC timestamps
//	syslog     local syslog daemon, facility MAIL
//	json       zap JSON encoder on stderr
//	off        discard everything
//
// Multiple targets are combined with MultiOutput.
func ParseOutput(targets []string) (Output, error) {
	outs := make([]Output, 0, len(targets))
	for _, target := range targets {
		switch target {
		case "stderr":
			outs = append(outs, WriterOutput(os.Stderr, false))
		case "stderr_ts":
			outs = append(outs, WriterOutput(os.Stderr, true))
		case "syslog":
			out, err := SyslogOutput()
			if err != nil {
				return nil, fmt.Errorf("log: failed to connect to syslog daemon: %w", err)
			}
			outs = append(outs, out)
		case "json":
			outs = append(outs, ZapOutput(os.Stderr))
		case "off":
			return NopOutput{}, nil
		default:
			return nil, fmt.Errorf("log: unknown log target: %s", target)
		}
	}
	if len(outs) == 0 {
		return NopOutput{}, nil
	}
	return MultiOutput(outs...), nil
}
