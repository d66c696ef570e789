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

package notify

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/qnotify/qmail-notify/framework/log"
)

// handleSignals returns a context that is cancelled on SIGINT or SIGTERM,
// stopping the scan before the next message and killing a running
// injector. A second signal terminates the process immediately.
//
// The returned function stops signal handling.
func handleSignals(ctx context.Context, logger log.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case s := <-sig:
			logger.Printf("signal received (%v), next signal will force immediate exit.", s)
			cancel()
		case <-done:
			return
		}

		select {
		case s := <-sig:
			logger.Printf("forced exit due to signal (%v)!", s)
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sig)
		close(done)
		cancel()
	}
}
