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

package medium

import (
	"fmt"
	"os"
)

// mmapFile has no portable implementation outside Linux in this repo
// (Piper's timerfd dependency already confines it to Linux); this stub
// exists only so the package still builds elsewhere, matching
// file_other.go's role.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return nil, fmt.Errorf("medium: mmap is only supported on linux")
}

func munmapFile(data []byte) error {
	return fmt.Errorf("medium: mmap is only supported on linux")
}
