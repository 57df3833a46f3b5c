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

package pacing

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// timerfdSource is the production tickSource, backed by a Linux
// timerfd. A periodic poll+read loop tolerates EINTR by returning
// immediately with no bytes consumed, letting Timer.accumulate resume
// at its own cursor on the next call.
type timerfdSource struct {
	fd int
}

func newTimerfdSource() (*timerfdSource, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		return nil, err
	}
	return &timerfdSource{fd: fd}, nil
}

func (s *timerfdSource) arm(period time.Duration) error {
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(period.Nanoseconds()),
		Value:    unix.NsecToTimespec(period.Nanoseconds()),
	}
	return unix.TimerfdSettime(s.fd, 0, &spec, nil)
}

func (s *timerfdSource) disarm() error {
	var spec unix.ItimerSpec
	return unix.TimerfdSettime(s.fd, 0, &spec, nil)
}

// read polls the timerfd for up to 50ms at a time so ctx cancellation
// is observed promptly even with no deadline, then performs a single
// read attempt. EINTR and EAGAIN are treated as benign interruptions:
// the caller retries from the same cursor.
func (s *timerfdSource) read(ctx context.Context, buf []byte, off int) (int, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return off, false, nil
		}

		timeoutMs := 50
		if dl, ok := ctx.Deadline(); ok {
			remaining := time.Until(dl)
			if remaining <= 0 {
				return off, false, nil
			}
			if ms := int(remaining / time.Millisecond); ms < timeoutMs {
				timeoutMs = ms
			}
		}

		fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				return off, false, nil
			}
			return off, false, err
		}
		if n == 0 {
			continue
		}

		read, err := unix.Read(s.fd, buf[off:8])
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				return off, false, nil
			}
			return off, false, err
		}
		newOff := off + read
		return newOff, newOff == 8, nil
	}
}

func (s *timerfdSource) close() error {
	return unix.Close(s.fd)
}
