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

// Package runstate keeps the time of the last completed scan.
//
// The file contains a single decimal Unix timestamp. It is the only thing
// that prevents the same delay notice from being sent twice, so it is
// written only after a scan finished without errors.
package runstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// Read returns the stored timestamp.
//
// A missing file means the tool was never run and yields the Unix epoch.
// Contents that are not a single decimal integer (only the first line is
// considered) are treated the same way. Other I/O errors are returned.
func Read(path string) (time.Time, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Unix(0, 0), nil
		}
		return time.Time{}, fmt.Errorf("runstate: %w", err)
	}

	line, _, _ := strings.Cut(string(blob), "\n")
	stamp, err := strconv.ParseInt(strings.TrimLeft(line, " \t"), 10, 64)
	if err != nil {
		return time.Unix(0, 0), nil
	}
	return time.Unix(stamp, 0), nil
}

// Write truncates the file and stores stamp with one second precision.
func Write(path string, stamp time.Time) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("runstate: %w", err)
	}
	if _, err := f.WriteString(strconv.FormatInt(stamp.Unix(), 10)); err != nil {
		f.Close()
		return fmt.Errorf("runstate: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("runstate: %w", err)
	}
	return nil
}
