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

// Package inject hands rendered notices to qmail-inject.
package inject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/qnotify/qmail-notify/framework/exterrors"
	"github.com/qnotify/qmail-notify/framework/log"
)

const DefaultPath = "/var/qmail/bin/qmail-inject"

type Injector struct {
	// Path to the qmail-inject binary.
	Path string

	// ExtraRcpt receives a copy of every notice, empty disables it.
	ExtraRcpt string

	// NoSend makes deliveries write to Stdout instead of starting the
	// injector.
	NoSend bool
	Stdout io.Writer

	// Timeout limits the lifetime of a single injector process, zero means
	// no limit.
	Timeout time.Duration

	Log log.Logger
}

// Args returns the injector arguments for a notice to sender. Notices are
// sent with a null envelope sender so they never bounce back to us.
func (inj *Injector) Args(sender string) []string {
	args := []string{"-f", "", "-a", sender}
	if inj.ExtraRcpt != "" {
		args = append(args, inj.ExtraRcpt)
	}
	return args
}

// Open starts a delivery of a notice to sender. The notice is written to
// the returned Delivery which must be finished with either Close or Abort.
func (inj *Injector) Open(ctx context.Context, sender string) (*Delivery, error) {
	path := inj.Path
	if path == "" {
		path = DefaultPath
	}
	args := inj.Args(sender)

	inj.Log.DebugMsg("starting injector", "cmd", path, "args", args, "no_send", inj.NoSend)

	if inj.NoSend {
		out := inj.Stdout
		if out == nil {
			out = os.Stdout
		}
		return &Delivery{out: out}, nil
	}

	cancel := context.CancelFunc(func() {})
	if inj.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, inj.Timeout)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = inj.Log.DebugWriter()
	cmd.Stderr = inj.Log
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, exterrors.WithFields(fmt.Errorf("inject: %w", err), map[string]interface{}{
			"cmd": cmd.String(),
		})
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, exterrors.WithFields(fmt.Errorf("inject: %w", err), map[string]interface{}{
			"cmd": cmd.String(),
		})
	}

	return &Delivery{
		ctx:    ctx,
		cancel: cancel,
		log:    inj.Log,
		cmd:    cmd,
		stdin:  stdin,
	}, nil
}

// Delivery is a single running injection.
type Delivery struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    log.Logger

	// cmd is nil in no-send mode, everything goes to out then.
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   io.Writer
}

func (d *Delivery) Write(b []byte) (int, error) {
	if d.cmd == nil {
		return d.out.Write(b)
	}
	return d.stdin.Write(b)
}

// Close ends the message and waits for the injector to exit. Any exit
// other than a zero status is returned as an error.
func (d *Delivery) Close() error {
	if d.cmd == nil {
		return nil
	}
	defer d.cancel()

	closeErr := d.stdin.Close()
	if err := d.wait(); err != nil {
		return err
	}
	if closeErr != nil {
		return exterrors.WithFields(fmt.Errorf("inject: %w", closeErr), map[string]interface{}{
			"cmd": d.cmd.String(),
		})
	}
	return nil
}

// Abort kills the injector so that a partially written notice is never
// queued.
func (d *Delivery) Abort() {
	if d.cmd == nil {
		return
	}
	defer d.cancel()

	d.stdin.Close()
	if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		d.log.Error("failed to kill injector", err, "pid", d.cmd.Process.Pid)
	}
	if err := d.cmd.Wait(); err != nil {
		d.log.DebugMsg("injector aborted", "reason", err.Error())
	}
}

func (d *Delivery) wait() error {
	err := d.cmd.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = newExitError(d.cmd.String(), exitErr)
	} else {
		err = exterrors.WithFields(fmt.Errorf("inject: wait: %w", err), map[string]interface{}{
			"cmd": d.cmd.String(),
		})
	}

	if ctxErr := d.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", err, ctxErr)
	}
	return err
}

// ExitError is returned if the injector exits with a non-zero status or is
// terminated by a signal.
type ExitError struct {
	Cmd string

	// Code is -1 if the process was terminated by a signal.
	Code   int
	Signal string

	Err *exec.ExitError
}

func newExitError(cmd string, err *exec.ExitError) *ExitError {
	e := &ExitError{
		Cmd:  cmd,
		Code: err.ExitCode(),
		Err:  err,
	}
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		e.Signal = ws.Signal().String()
	}
	return e
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("inject: injector terminated by signal: %s", e.Signal)
	}
	return fmt.Sprintf("inject: injector exited with status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func (e *ExitError) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"cmd":       e.Cmd,
		"exit_code": e.Code,
	}
	if e.Signal != "" {
		f["signal"] = e.Signal
	}
	return f
}
