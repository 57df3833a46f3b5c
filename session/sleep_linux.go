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

package session

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// sleepInterruptible sleeps for d using unix.Nanosleep, matching the
// source's nanosleep-based spin-sleep, but returns early (nil error) if
// ctx is canceled. EINTR from a delivered signal simply ends the sleep
// early, which is fine here since the caller re-checks its own
// condition on every loop iteration.
func sleepInterruptible(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	go func() {
		ts := unix.NsecToTimespec(d.Nanoseconds())
		unix.Nanosleep(&ts, nil)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
