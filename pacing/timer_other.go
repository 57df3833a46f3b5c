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

package pacing

import (
	"context"
	"fmt"
	"time"
)

// timerfdSource has no portable implementation outside Linux; Piper's
// Timer is a Linux-only component (spec.md §4.4 calls out "a file
// descriptor on Linux; an equivalent waitable handle on other systems",
// which this repo does not provide).
type timerfdSource struct{}

func newTimerfdSource() (*timerfdSource, error) {
	return nil, fmt.Errorf("pacing: timerfd is only supported on linux")
}

func (s *timerfdSource) arm(time.Duration) error                                    { return nil }
func (s *timerfdSource) disarm() error                                              { return nil }
func (s *timerfdSource) read(context.Context, []byte, int) (int, bool, error) { return 0, false, nil }
func (s *timerfdSource) close() error                                               { return nil }
