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

//go:build !linux

package backer

import "os"

// osPageSize falls back to a conservative fixed page size on platforms
// without a direct Getpagesize syscall wired up; Piper's primary target
// is Linux (timerfd has no portable equivalent), matching file_other.go's
// role as a non-Linux placeholder rather than a fully-supported path.
func osPageSize() int {
	return 4096
}

// allocate falls back to a plain truncate; non-Linux platforms lack
// fallocate(2), matching file_other.go's simplified resize().
func allocate(f *os.File, size int64) error {
	return f.Truncate(size)
}
