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

// Package config assembles the run configuration from the environment, the
// command line and the qmail control directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/qnotify/qmail-notify/internal/expiry"
)

const (
	DefaultAge           = 4 * time.Hour
	DefaultQueueLifetime = 604800 * time.Second
	DefaultExtraRcpt     = "postmaster"
)

// Paths is the deployment layout. Every field can be set through the
// environment with the QMAIL_NOTIFY_ prefix, e.g. QMAIL_NOTIFY_QUEUE_DIR.
type Paths struct {
	QueueDir   string `envconfig:"QUEUE_DIR" default:"/var/qmail/queue"`
	ControlDir string `envconfig:"CONTROL_DIR" default:"/var/qmail/control"`
	Inject     string `envconfig:"INJECT" default:"/var/qmail/bin/qmail-inject"`
	RunFile    string `envconfig:"RUN_FILE" default:"/var/run/qmail-notify.time"`
}

func LoadPaths() (Paths, error) {
	var p Paths
	if err := envconfig.Process("qmail_notify", &p); err != nil {
		return Paths{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// RcptHostsDB configures the supplementary indexed domain list. Without
// Driver the sqlite file control/morercpthosts.db is used if it exists.
type RcptHostsDB struct {
	Driver string
	DSN    string
	Query  string
}

type Config struct {
	Paths

	// Read from the control directory by Load.
	Me            string
	QueueLifetime time.Duration

	// Thresholds in descending order.
	Thresholds []time.Duration

	CopyBytes      int64
	MIME           bool
	NoSend         bool
	Debug          bool
	CheckRcptHosts bool
	RcptHostsDB    RcptHostsDB

	// ExtraRcpt is the name given by the user, see ResolveExtraRcpt for
	// the address actually used.
	ExtraRcpt string

	TemplatePath  string
	InjectTimeout time.Duration
	MetricsFile   string
}

// Load completes base with the values from the control directory and
// returns the resulting configuration. base is not modified.
func Load(base Config) (*Config, error) {
	cfg := base
	cfg.Thresholds = expiry.Sort(base.Thresholds)
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = []time.Duration{DefaultAge}
	}

	me, err := ReadLine(cfg.ControlDir, "me")
	if err != nil {
		return nil, err
	}
	if me == "" {
		return nil, ControlErr(cfg.ControlDir, "me", "missing or empty, the local host name is required")
	}
	cfg.Me = me

	lifetime, err := ReadInt(cfg.ControlDir, "queuelifetime", int64(DefaultQueueLifetime/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.QueueLifetime = time.Duration(lifetime) * time.Second

	return &cfg, nil
}

// ExtraRcptAddr returns the address every notice is copied to, empty if
// none.
func (c *Config) ExtraRcptAddr() string {
	return ResolveExtraRcpt(c.ExtraRcpt, c.Me)
}

// ResolveExtraRcpt qualifies name with the local host name me unless it
// already has a domain.
func ResolveExtraRcpt(name, me string) string {
	if name == "" || strings.Contains(name, "@") {
		return name
	}
	return name + "@" + me
}

// ParseThresholds parses notice ages. A plain integer is a number of
// seconds, anything else is a Go duration such as "4h" or "1h30m".
//
// The result is sorted in descending order without duplicates. An empty
// list yields DefaultAge.
func ParseThresholds(values []string) ([]time.Duration, error) {
	res := make([]time.Duration, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)

		var d time.Duration
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			d = time.Duration(secs) * time.Second
		} else {
			d, err = time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("config: malformed age %q: %w", v, err)
			}
		}
		if d <= 0 {
			return nil, fmt.Errorf("config: age must be positive: %s", v)
		}
		res = append(res, d)
	}

	if len(res) == 0 {
		return []time.Duration{DefaultAge}, nil
	}
	return expiry.Sort(res), nil
}

func ControlErr(dir, name, f string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", filepath.Join(dir, name), fmt.Sprintf(f, args...))
}

// ReadLine returns the first line of a control file, without surrounding
// whitespace. A missing file reads as an empty string.
func ReadLine(dir, name string) (string, error) {
	blob, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: %w", err)
	}
	line, _, _ := strings.Cut(string(blob), "\n")
	return strings.TrimSpace(line), nil
}

// ReadInt reads a control file holding a decimal integer. Missing file,
// empty file or malformed contents yield dflt.
func ReadInt(dir, name string, dflt int64) (int64, error) {
	line, err := ReadLine(dir, name)
	if err != nil {
		return 0, err
	}
	if line == "" {
		return dflt, nil
	}
	val, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return dflt, nil
	}
	return val, nil
}
