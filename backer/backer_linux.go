// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

//go:build linux

package backer

import (
	"os"

	"golang.org/x/sys/unix"
)

// osPageSize returns the runtime page size, matching file_linux.go's use
// of unix.Getpagesize() for alignment decisions.
func osPageSize() int {
	return unix.Getpagesize()
}

// allocate grows f to size bytes using Fallocate so the filesystem backs
// every page up front; this avoids SIGBUS from a later mmap writing past
// a sparse file's actually-allocated extents, mirroring file_linux.go's
// resize().
func allocate(f *os.File, size int64) error {
	if err := unix.Fallocate(int(f.Fd()), 0, 0, size); err != nil {
		if err == unix.ENOSYS || err == unix.EOPNOTSUPP {
			return f.Truncate(size)
		}
		return err
	}
	return nil
}
