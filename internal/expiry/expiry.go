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

// Package expiry decides whether a queued message became due for a delay
// notice since the previous run.
package expiry

import (
	"sort"
	"time"
)

type Verdict int

const (
	// NotDue means the message is younger than every threshold.
	NotDue Verdict = iota
	// AlreadyDue means the largest reached threshold was already reached
	// at the previous run, the notice for it was handled back then.
	AlreadyDue
	// Due means a threshold was crossed between the previous run and now.
	Due
)

func (v Verdict) String() string {
	switch v {
	case NotDue:
		return "not_due"
	case AlreadyDue:
		return "already_due"
	case Due:
		return "due"
	}
	return "unknown"
}

// Decide walks thresholds from the largest to the smallest and stops at the
// first one that is reached at now. The returned threshold is that one; it
// is zero for NotDue.
//
// thresholds must be sorted in descending order, see Sort.
//
// At most one threshold can be Due per run: once the largest reached
// threshold is found, smaller ones are never looked at, even if it turned
// out to be AlreadyDue.
func Decide(created, now, lastRun time.Time, thresholds []time.Duration) (Verdict, time.Duration) {
	for _, threshold := range thresholds {
		expiry := created.Add(threshold)
		if expiry.After(now) {
			continue
		}
		if !expiry.After(lastRun) {
			return AlreadyDue, threshold
		}
		return Due, threshold
	}
	return NotDue, 0
}

// Sort returns thresholds in descending order with duplicates and
// non-positive values removed. The input slice is not modified.
func Sort(thresholds []time.Duration) []time.Duration {
	res := make([]time.Duration, 0, len(thresholds))
	for _, t := range thresholds {
		if t > 0 {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] > res[j] })

	dedup := res[:0]
	for i, t := range res {
		if i != 0 && res[i-1] == t {
			continue
		}
		dedup = append(dedup, t)
	}
	return dedup
}
