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

package ctl

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	notifycli "github.com/qnotify/qmail-notify/internal/cli"
	"github.com/qnotify/qmail-notify/internal/cli/clitools"
	"github.com/qnotify/qmail-notify/internal/runstate"
	"github.com/urfave/cli/v2"
)

var lastrunCmd = &cli.Command{
	Name:  "lastrun",
	Usage: "Show or change the time of the last completed scan",
	Description: `Without options the stored time is printed. Messages that became due
before this time do not get a notice on the next run.

--set moves the time to the specified Unix timestamp, --reset removes
the run file so that the next run considers every message in the queue.`,
	Action: lastrunCommand,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "run-file",
			Usage: "Use `FILE` instead of the default run file",
		},
		&cli.Int64Flag{
			Name:  "set",
			Usage: "Store `UNIX` as the last run time",
		},
		&cli.BoolFlag{
			Name:  "reset",
			Usage: "Forget the last run time",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Don't ask for confirmation",
		},
	},
}

func init() {
	notifycli.AddSubcommand(lastrunCmd)
}

func lastrunCommand(ctx *cli.Context) error {
	paths, err := loadPaths(ctx)
	if err != nil {
		return err
	}

	switch {
	case ctx.IsSet("set") && ctx.Bool("reset"):
		return cli.Exit("Error: --set and --reset are mutually exclusive", 2)
	case ctx.IsSet("set"):
		stamp := ctx.Int64("set")
		if stamp < 0 {
			return cli.Exit("Error: timestamp should not be negative", 2)
		}
		return runstate.Write(paths.RunFile, time.Unix(stamp, 0))
	case ctx.Bool("reset"):
		if !ctx.Bool("yes") {
			if !clitools.Confirmation("The next run may send notices for every delayed message again. Continue?", false) {
				return errors.New("Cancelled")
			}
		}
		if err := os.Remove(paths.RunFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	stamp, err := runstate.Read(paths.RunFile)
	if err != nil {
		return err
	}
	printLastRun(ctx.App.Writer, stamp)
	return nil
}

func printLastRun(w io.Writer, stamp time.Time) {
	if stamp.Unix() == 0 {
		fmt.Fprintln(w, "never")
		return
	}
	fmt.Fprintln(w, strconv.FormatInt(stamp.Unix(), 10), stamp.UTC().Format(time.RFC3339))
}
