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

package queue

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the scan metrics. It is separate from the default registry
// so that the textfile written by WriteMetrics contains nothing but our own
// metrics.
var Registry = prometheus.NewRegistry()

var (
	scannedMsgs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qmail_notify",
			Name:      "scanned_total",
			Help:      "Queue entries examined",
		},
	)
	noticesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qmail_notify",
			Name:      "notices_total",
			Help:      "Delay notices handed to the injector",
		},
		[]string{"threshold"},
	)
	skippedMsgs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qmail_notify",
			Name:      "skipped_total",
			Help:      "Queue entries that did not get a notice",
		},
		[]string{"reason"},
	)
	lastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qmail_notify",
			Name:      "last_run_timestamp_seconds",
			Help:      "Time of the last completed scan",
		},
	)
)

func init() {
	Registry.MustRegister(scannedMsgs)
	Registry.MustRegister(noticesSent)
	Registry.MustRegister(skippedMsgs)
	Registry.MustRegister(lastRunTime)
}

// WriteMetrics stores the current metric values at path in the format
// understood by node_exporter's textfile collector.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("queue: write metrics: %w", err)
	}
	return nil
}
