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

package cli

import (
	"fmt"
	"os"

	"github.com/qnotify/qmail-notify/framework/log"
	"github.com/urfave/cli/v2"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "qmail-notify"
	app.Usage = "delayed delivery notices for the qmail queue"
	app.Description = `qmail-notify scans the qmail queue and tells the senders of messages that
are still undelivered after the configured age that their message is delayed.

It is meant to be run periodically from cron. The time of the last run is
kept in the run file so every notice is sent only once. Running without a
subcommand performs a scan ('run').
`
	app.Authors = []*cli.Author{
		{
			Name: "qmail-notify contributors",
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			log.DefaultLogger.Error("fatal error", err)
			cli.OsExiter(1)
		}
	}
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		{
			Name:   "generate-man",
			Hidden: true,
			Action: func(c *cli.Context) error {
				man, err := app.ToMan()
				if err != nil {
					return err
				}
				fmt.Println(man)
				return nil
			},
		},
		{
			Name:   "generate-fish-completion",
			Hidden: true,
			Action: func(c *cli.Context) error {
				cp, err := app.ToFishCompletion()
				if err != nil {
					return err
				}
				fmt.Println(cp)
				return nil
			},
		},
	}
}

// SetVersion sets the string printed by --version.
func SetVersion(v string) {
	app.Version = v
}

func AddSubcommand(cmd *cli.Command) {
	app.Commands = append(app.Commands, cmd)

	// A scan is the default action so that the usual cron line stays
	// "qmail-notify -t 4h".
	if cmd.Name == "run" {
		app.Action = cmd.Action
		app.Flags = append(app.Flags, cmd.Flags...)
	}
}

func Run() {
	// Commands are registered in init functions of the root package and
	// internal/cli/ctl.
	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger.Error("app.Run failed", err)
	}
}
