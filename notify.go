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

// Package notify implements the scan command: it reads the configuration,
// wires the queue scanner to its collaborators and keeps the run file.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qnotify/qmail-notify/framework/log"
	"github.com/qnotify/qmail-notify/framework/module"
	notifycli "github.com/qnotify/qmail-notify/internal/cli"
	"github.com/qnotify/qmail-notify/internal/config"
	"github.com/qnotify/qmail-notify/internal/dsn"
	"github.com/qnotify/qmail-notify/internal/inject"
	"github.com/qnotify/qmail-notify/internal/queue"
	"github.com/qnotify/qmail-notify/internal/rcptfilter"
	"github.com/qnotify/qmail-notify/internal/runstate"
	"github.com/qnotify/qmail-notify/internal/table"
	"github.com/urfave/cli/v2"
)

var runFlags = []cli.Flag{
	&cli.Int64Flag{
		Name:    "bytes",
		Aliases: []string{"b"},
		Usage:   "Copy `N` bytes of the original message into the notice, -1 copies the entire message, 0 disables the copy",
		Value:   -1,
	},
	&cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"d"},
		Usage:   "Show debugging messages",
	},
	&cli.BoolFlag{
		Name:    "mime",
		Aliases: []string{"m"},
		Usage:   "Attach the original message as a MIME part",
	},
	&cli.BoolFlag{
		Name:    "no-send",
		Aliases: []string{"N"},
		Usage:   "Print notices to stdout instead of sending them, the run file is not updated",
	},
	&cli.BoolFlag{
		Name:    "rcpthosts",
		Aliases: []string{"r"},
		Usage:   "Notify only senders with a domain listed in rcpthosts or morercpthosts",
	},
	&cli.StringSliceFlag{
		Name:    "age",
		Aliases: []string{"t"},
		Usage:   "Notify about messages queued for `AGE` (seconds or a duration like 4h), can be repeated",
	},
	&cli.StringFlag{
		Name:    "extra-rcpt",
		Aliases: []string{"x"},
		Usage:   "Send a copy of every notice to `RCPT`, qualified with control/me if it has no domain, empty to disable",
		Value:   config.DefaultExtraRcpt,
	},
	&cli.StringFlag{
		Name:  "template",
		Usage: "Read the notice text from `FILE` (text/template)",
	},
	&cli.StringFlag{
		Name:  "run-file",
		Usage: "Keep the last run time in `FILE`",
	},
	&cli.StringFlag{
		Name:  "queue",
		Usage: "qmail queue `DIR`",
	},
	&cli.StringFlag{
		Name:  "control",
		Usage: "qmail control `DIR`",
	},
	&cli.StringFlag{
		Name:  "inject",
		Usage: "Path to the qmail-inject `BINARY`",
	},
	&cli.DurationFlag{
		Name:  "inject-timeout",
		Usage: "Kill qmail-inject if it does not finish within `DURATION`, 0 waits forever",
	},
	&cli.StringFlag{
		Name:  "rcpthosts-db-driver",
		Usage: "Look up domains in an SQL database using `DRIVER` (sqlite, sqlite3, postgres, mysql) instead of control/morercpthosts.db",
	},
	&cli.StringFlag{
		Name:  "rcpthosts-db-dsn",
		Usage: "Data source name for --rcpthosts-db-driver",
	},
	&cli.StringFlag{
		Name:  "rcpthosts-db-query",
		Usage: "Domain lookup `QUERY`, takes the domain as the only argument",
	},
	&cli.StringFlag{
		Name:  "metrics-file",
		Usage: "Write scan metrics to `FILE` in Prometheus text format",
	},
	&cli.StringSliceFlag{
		Name:  "log",
		Usage: "Log to `TARGET`s (stderr, stderr_ts, syslog, json, off)",
		Value: cli.NewStringSlice("stderr"),
	},
}

func init() {
	notifycli.SetVersion(BuildInfo())
	notifycli.AddSubcommand(
		&cli.Command{
			Name:   "run",
			Usage:  "Scan the queue and send delay notices (default)",
			Flags:  runFlags,
			Action: runCommand,
		},
	)
}

func runCommand(c *cli.Context) error {
	if c.NArg() != 0 {
		cli.ShowAppHelp(c) //nolint:errcheck
		return cli.Exit(fmt.Sprintf("Error: unexpected arguments: %s", strings.Join(c.Args().Slice(), " ")), 2)
	}

	out, err := log.ParseOutput(c.StringSlice("log"))
	if err != nil {
		return cli.Exit("Error: "+err.Error(), 2)
	}
	log.DefaultLogger.Out = out
	log.DefaultLogger.Debug = c.Bool("debug")

	paths, err := config.LoadPaths()
	if err != nil {
		return cli.Exit("Error: "+err.Error(), 2)
	}
	cfg, err := configFromFlags(c, paths)
	if err != nil {
		return err
	}

	ctx, stop := handleSignals(c.Context, log.DefaultLogger)
	defer stop()

	return Run(ctx, cfg, os.Stdout)
}

func configFromFlags(c *cli.Context, paths config.Paths) (*config.Config, error) {
	for flag, dst := range map[string]*string{
		"queue":    &paths.QueueDir,
		"control":  &paths.ControlDir,
		"inject":   &paths.Inject,
		"run-file": &paths.RunFile,
	} {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}

	thresholds, err := config.ParseThresholds(c.StringSlice("age"))
	if err != nil {
		return nil, cli.Exit("Error: "+err.Error(), 2)
	}

	return config.Load(config.Config{
		Paths:          paths,
		Thresholds:     thresholds,
		CopyBytes:      c.Int64("bytes"),
		MIME:           c.Bool("mime"),
		NoSend:         c.Bool("no-send"),
		Debug:          c.Bool("debug"),
		CheckRcptHosts: c.Bool("rcpthosts"),
		RcptHostsDB: config.RcptHostsDB{
			Driver: c.String("rcpthosts-db-driver"),
			DSN:    c.String("rcpthosts-db-dsn"),
			Query:  c.String("rcpthosts-db-query"),
		},
		ExtraRcpt:     c.String("extra-rcpt"),
		TemplatePath:  c.String("template"),
		InjectTimeout: c.Duration("inject-timeout"),
		MetricsFile:   c.String("metrics-file"),
	})
}

// Run performs a single scan of the queue described by cfg. Notices are
// written to stdout in no-send mode.
//
// The run file is updated only if the scan completed and no-send mode is
// off.
func Run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger := log.DefaultLogger.With("run_id", uuid.NewString())

	lastRun, err := runstate.Read(cfg.RunFile)
	if err != nil {
		return err
	}
	now := time.Now().Truncate(time.Second)

	thresholds := make([]string, 0, len(cfg.Thresholds))
	for _, t := range cfg.Thresholds {
		thresholds = append(thresholds, t.String())
	}
	logger.DebugMsg("starting scan",
		"me", cfg.Me,
		"queuelifetime", cfg.QueueLifetime.String(),
		"extra_rcpt", cfg.ExtraRcptAddr(),
		"now", now.Unix(),
		"lastrun", lastRun.Unix(),
		"thresholds", strings.Join(thresholds, ","),
	)

	composer, err := newComposer(cfg)
	if err != nil {
		return err
	}
	filter, closeFilter, err := newFilter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFilter()

	scanner := &queue.Scanner{
		Root:       cfg.QueueDir,
		Now:        now,
		LastRun:    lastRun,
		Thresholds: cfg.Thresholds,
		Filter:     filter,
		Composer:   composer,
		Injector: &inject.Injector{
			Path:      cfg.Inject,
			ExtraRcpt: cfg.ExtraRcptAddr(),
			NoSend:    cfg.NoSend,
			Stdout:    stdout,
			Timeout:   cfg.InjectTimeout,
			Log:       logger.Named("inject"),
		},
		Log: logger.Named("queue"),
	}

	stats, scanErr := scanner.Run(ctx)
	logger.DebugMsg("scan finished", "scanned", stats.Scanned, "notices", stats.Notices)

	if cfg.MetricsFile != "" {
		if err := queue.WriteMetrics(cfg.MetricsFile); err != nil {
			if scanErr != nil {
				logger.Error("metrics not saved", err)
			} else {
				return err
			}
		}
	}
	if scanErr != nil {
		return scanErr
	}

	if cfg.NoSend {
		return nil
	}
	return runstate.Write(cfg.RunFile, now)
}

func newComposer(cfg *config.Config) (*dsn.Composer, error) {
	opts := dsn.Options{
		Hostname:  cfg.Me,
		Lifetime:  cfg.QueueLifetime,
		MIME:      cfg.MIME,
		CopyBytes: cfg.CopyBytes,
	}
	if cfg.TemplatePath != "" {
		tmpl, err := dsn.LoadTemplate(cfg.TemplatePath)
		if err != nil {
			return nil, err
		}
		opts.Body = tmpl
	}
	return dsn.New(opts), nil
}

// newFilter returns nil if sender domains are not checked. Otherwise the
// filter consults control/rcpthosts and the indexed lookup: either the
// configured SQL database or control/morercpthosts.db if it exists.
func newFilter(ctx context.Context, cfg *config.Config, logger log.Logger) (*rcptfilter.Filter, func(), error) {
	noop := func() {}
	if !cfg.CheckRcptHosts {
		return nil, noop, nil
	}

	rcpthosts, err := table.NewFile(filepath.Join(cfg.ControlDir, "rcpthosts"), logger.Named("rcpthosts"))
	if err != nil {
		return nil, noop, err
	}
	tables := []module.Table{rcpthosts}

	db := cfg.RcptHostsDB
	if db.Driver == "" {
		path := filepath.Join(cfg.ControlDir, "morercpthosts.db")
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return rcptfilter.New(logger.Named("rcptfilter"), tables...), noop, nil
			}
			return nil, noop, err
		}
		db = config.RcptHostsDB{Driver: "sqlite", DSN: table.SQLiteDSN(path)}
	}
	if db.Query == "" {
		db.Query = table.DefaultLookupQuery(db.Driver)
	}

	sqlTbl, err := table.NewSQL(ctx, table.SQLConfig{
		Driver: db.Driver,
		DSN:    db.DSN,
		Lookup: db.Query,
	})
	if err != nil {
		return nil, noop, err
	}
	tables = append(tables, sqlTbl)

	return rcptfilter.New(logger.Named("rcptfilter"), tables...), func() { sqlTbl.Close() }, nil
}
