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
	"github.com/qnotify/qmail-notify/internal/config"
	"github.com/urfave/cli/v2"
)

// loadPaths returns the deployment layout from the environment with the
// path flags of the current subcommand applied on top.
func loadPaths(ctx *cli.Context) (config.Paths, error) {
	paths, err := config.LoadPaths()
	if err != nil {
		return config.Paths{}, cli.Exit("Error: "+err.Error(), 2)
	}
	if ctx.IsSet("run-file") {
		paths.RunFile = ctx.String("run-file")
	}
	if ctx.IsSet("control") {
		paths.ControlDir = ctx.String("control")
	}
	return paths, nil
}
