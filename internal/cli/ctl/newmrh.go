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
	"fmt"
	"os"
	"path/filepath"

	"github.com/qnotify/qmail-notify/framework/log"
	notifycli "github.com/qnotify/qmail-notify/internal/cli"
	"github.com/qnotify/qmail-notify/internal/table"
	"github.com/urfave/cli/v2"
)

var newmrhCmd = &cli.Command{
	Name:  "newmrh",
	Usage: "Compile morercpthosts into the indexed lookup file",
	Description: `Reads a domain list in rcpthosts format and writes it as an sqlite
database that is used by 'run -r' in addition to control/rcpthosts.

The database is replaced atomically, it is safe to run this while a scan
is in progress.`,
	Action: newmrhCommand,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "control",
			Usage: "qmail control `DIR`",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Read domains from `FILE` instead of control/morercpthosts",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Write the database to `FILE` instead of control/morercpthosts.db",
		},
	},
}

func init() {
	notifycli.AddSubcommand(newmrhCmd)
}

func newmrhCommand(ctx *cli.Context) error {
	paths, err := loadPaths(ctx)
	if err != nil {
		return err
	}

	source := ctx.String("source")
	if source == "" {
		source = filepath.Join(paths.ControlDir, "morercpthosts")
	}
	output := ctx.String("output")
	if output == "" {
		output = filepath.Join(paths.ControlDir, "morercpthosts.db")
	}

	if _, err := os.Stat(source); err != nil {
		return err
	}
	domains, err := table.NewFile(source, log.DefaultLogger.Named("newmrh"))
	if err != nil {
		return err
	}
	if err := table.BuildSQLite(ctx.Context, output, domains.Keys()); err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "%d domains written to %s\n", domains.Len(), output)
	return nil
}
