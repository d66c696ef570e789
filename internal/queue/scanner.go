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

// Package queue walks the qmail queue and sends delay notices for the
// messages that became due since the previous run.
//
// The queue is only read. A message is described by files with the same
// <bucket>/<id> name in several directories:
//
//	info/    envelope sender, the file mtime is the time the message was queued
//	local/   recipient status list for local deliveries
//	remote/  recipient status list for remote deliveries
//	mess/    the message itself
package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qnotify/qmail-notify/framework/address"
	"github.com/qnotify/qmail-notify/framework/exterrors"
	"github.com/qnotify/qmail-notify/framework/log"
	"github.com/qnotify/qmail-notify/internal/dsn"
	"github.com/qnotify/qmail-notify/internal/expiry"
	"github.com/qnotify/qmail-notify/internal/inject"
	"github.com/qnotify/qmail-notify/internal/rcptfilter"
	"github.com/qnotify/qmail-notify/internal/rcptstatus"
)

// Reasons a queue entry did not get a notice, used as the metric label.
const (
	SkipVanished     = "vanished"
	SkipNotDue       = "not_due"
	SkipAlreadyDue   = "already_due"
	SkipNullSender   = "null_sender"
	SkipDomainDenied = "domain_denied"
	SkipNoPending    = "no_pending"
)

type Scanner struct {
	// Root is the queue directory, usually /var/qmail/queue.
	Root string

	// Now and LastRun are fixed for the whole scan.
	Now     time.Time
	LastRun time.Time

	// Thresholds in descending order, see expiry.Sort.
	Thresholds []time.Duration

	// Filter may be nil to send notices to every sender.
	Filter   *rcptfilter.Filter
	Composer *dsn.Composer
	Injector *inject.Injector

	Log log.Logger
}

// Stats summarizes a single scan.
type Stats struct {
	Scanned int
	Notices int
	Skipped map[string]int
}

func (s *Stats) skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = make(map[string]int)
	}
	s.Skipped[reason]++
	skippedMsgs.WithLabelValues(reason).Inc()
}

// Run scans the whole queue once, one message at a time.
//
// Any error other than a queue entry disappearing during the scan stops it
// and is returned, Stats then cover the part of the queue that was
// processed.
func (s *Scanner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	infoDir := filepath.Join(s.Root, "info")
	buckets, err := os.ReadDir(infoDir)
	if err != nil {
		return stats, fmt.Errorf("queue: %w", err)
	}

	for _, bucket := range buckets {
		if strings.HasPrefix(bucket.Name(), ".") {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(infoDir, bucket.Name()))
		if err != nil {
			return stats, fmt.Errorf("queue: %w", err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			ref := bucket.Name() + "/" + entry.Name()
			if err := s.scanMessage(ctx, &stats, ref); err != nil {
				return stats, exterrors.WithFields(err, map[string]interface{}{
					"msg_id": ref,
				})
			}
		}
	}

	lastRunTime.Set(float64(s.Now.Unix()))
	return stats, nil
}

func (s *Scanner) path(dir, ref string) string {
	return filepath.Join(s.Root, dir, filepath.FromSlash(ref))
}

func (s *Scanner) scanMessage(ctx context.Context, stats *Stats, ref string) error {
	info, err := os.Open(s.path("info", ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Log.DebugMsg("ignoring, info file vanished", "msg_id", ref)
			stats.skip(SkipVanished)
			return nil
		}
		return fmt.Errorf("queue: %w", err)
	}
	defer info.Close()

	st, err := info.Stat()
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}

	stats.Scanned++
	scannedMsgs.Inc()

	created := st.ModTime().Truncate(time.Second)
	verdict, threshold := expiry.Decide(created, s.Now, s.LastRun, s.Thresholds)
	s.Log.DebugMsg("checked expiry", "msg_id", ref, "created", created.Unix(), "verdict", verdict.String())
	switch verdict {
	case expiry.NotDue:
		stats.skip(SkipNotDue)
		return nil
	case expiry.AlreadyDue:
		stats.skip(SkipAlreadyDue)
		return nil
	}

	blob, err := io.ReadAll(info)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	sender := parseSender(blob)

	if address.IsNull(sender) {
		s.Log.DebugMsg("ignoring, null sender", "msg_id", ref, "sender", sender)
		stats.skip(SkipNullSender)
		return nil
	}

	if s.Filter != nil {
		ok, err := s.Filter.Allowed(ctx, sender)
		if err != nil {
			return err
		}
		if !ok {
			s.Log.DebugMsg("ignoring, sender domain is not accepted locally", "msg_id", ref, "sender", sender)
			stats.skip(SkipDomainDenied)
			return nil
		}
	}

	localBlob, err := s.readStatus("local", ref)
	if err != nil {
		return err
	}
	remoteBlob, err := s.readStatus("remote", ref)
	if err != nil {
		return err
	}
	pending := rcptstatus.CountPending(localBlob) + rcptstatus.CountPending(remoteBlob)
	s.Log.DebugMsg("recipients", "msg_id", ref, "sender", sender, "pending", pending)
	if pending == 0 {
		stats.skip(SkipNoPending)
		return nil
	}

	if err := s.notify(ctx, ref, dsn.Notice{
		Sender:    sender,
		Threshold: threshold,
		Locals:    rcptstatus.Parse(localBlob),
		Remotes:   rcptstatus.Parse(remoteBlob),
	}); err != nil {
		return err
	}

	s.Log.Msg("delay notice sent", "msg_id", ref, "sender", sender, "threshold", threshold.String(), "pending", pending)
	stats.Notices++
	noticesSent.WithLabelValues(threshold.String()).Inc()
	return nil
}

func (s *Scanner) notify(ctx context.Context, ref string, n dsn.Notice) error {
	mess, err := os.Open(s.path("mess", ref))
	switch {
	case err == nil:
		defer mess.Close()
		n.Original = mess
	case errors.Is(err, fs.ErrNotExist):
		// The composer reports it if the copy is needed.
	default:
		return fmt.Errorf("queue: %w", err)
	}

	delivery, err := s.Injector.Open(ctx, n.Sender)
	if err != nil {
		return err
	}
	if err := s.Composer.Render(delivery, n); err != nil {
		delivery.Abort()
		return err
	}
	return delivery.Close()
}

func (s *Scanner) readStatus(dir, ref string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(dir, ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: %w", err)
	}
	return blob, nil
}

// parseSender extracts the envelope sender from an info file:
// 'F', the address, NUL.
func parseSender(blob []byte) string {
	blob = bytes.TrimPrefix(blob, []byte{'F'})
	if i := bytes.IndexByte(blob, 0); i != -1 {
		blob = blob[:i]
	}
	return string(blob)
}
