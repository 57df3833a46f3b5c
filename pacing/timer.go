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

// Package pacing implements the wall-clock tick source (Timer) and the
// rate limiter built on top of it (TokenBucket) described in spec.md
// §4.4–§4.5.
package pacing

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/audiopiper/piper/internal/pipererr"
)

// Logger is the minimal logging surface pacing depends on; cmd/piper
// wires a real structured logger behind it.
type Logger interface {
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}

// tickSource abstracts the OS wait handle a Timer reads overrun counts
// from. The production implementation wraps a timerfd; tests substitute
// a fake that can inject partial reads and EINTR.
type tickSource interface {
	arm(period time.Duration) error
	disarm() error
	// read blocks (respecting ctx) until bytes are available, writing
	// into buf starting at offset off and returning the new offset. It
	// returns (offset, true, nil) once 8 bytes have been fully read, at
	// which point the caller decodes buf as a little-endian u64 overrun
	// count. EINTR-shaped interruptions return (off, false, nil) with no
	// error so the caller can retry from the same cursor.
	read(ctx context.Context, buf []byte, off int) (int, bool, error)
	close() error
}

// Timer is a periodic tick source. It is not safe for concurrent use
// from multiple goroutines without external synchronization, matching
// the single-threaded producer-loop ownership model of spec.md §5.
type Timer struct {
	period time.Duration
	log    Logger

	src tickSource

	count uint64
	buf   [8]byte
	cur   int // cursor into buf, for resuming a partial/EINTR-interrupted read
}

// NewTimer constructs a Timer with the given tick period. The timer is
// not armed until Start is called.
func NewTimer(period time.Duration, log Logger) (*Timer, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %s", pipererr.ErrInvalidArgument, period)
	}
	if log == nil {
		log = nopLogger{}
	}
	src, err := newTimerfdSource()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipererr.ErrTimer, err)
	}
	return &Timer{period: period, log: log, src: src}, nil
}

// Period returns the timer's configured tick period.
func (t *Timer) Period() time.Duration { return t.period }

// Start arms the timer with first fire at now+period, interval period,
// and clears the internal tick count.
func (t *Timer) Start() error {
	t.count, t.cur = 0, 0
	if err := t.src.arm(t.period); err != nil {
		return fmt.Errorf("%w: arm: %v", pipererr.ErrTimer, err)
	}
	return nil
}

// Stop disarms the timer and clears the tick count.
func (t *Timer) Stop() error {
	t.count, t.cur = 0, 0
	if err := t.src.disarm(); err != nil {
		return fmt.Errorf("%w: disarm: %v", pipererr.ErrTimer, err)
	}
	return nil
}

// Accumulate blocks until at least one tick has fired, then adds the
// fired count to the internal counter.
func (t *Timer) Accumulate(ctx context.Context) error {
	return t.accumulate(ctx)
}

// TryAccumulate polls for ticks with the given timeout: 0 means
// immediate, a negative duration means block indefinitely. A context
// cancellation or an elapsed timeout returns nil with no ticks added; an
// interrupted underlying read is retried from the saved cursor until the
// read completes or the context or timeout ends. Callers should check
// ctx.Err() to distinguish cancellation from a benign empty poll.
func (t *Timer) TryAccumulate(ctx context.Context, timeout time.Duration) error {
	cctx := ctx
	var cancel context.CancelFunc
	if timeout >= 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := t.accumulate(cctx)
	if err != nil && cctx.Err() != nil && ctx.Err() == nil {
		// Only the timeout fired, not the caller's own context; this is
		// a benign empty poll, not an error.
		return nil
	}
	return err
}

// accumulate performs one full 8-byte read of the tick source, tolerant
// of partial reads by resuming at t.cur on each call (this is what makes
// TryAccumulate idempotent under EINTR: a signal arriving mid-read
// leaves t.cur where the next call picks up, so no bytes are lost or
// double-counted).
func (t *Timer) accumulate(ctx context.Context) error {
	for t.cur < 8 {
		n, done, err := t.src.read(ctx, t.buf[:], t.cur)
		if err != nil {
			return fmt.Errorf("%w: read: %v", pipererr.ErrTimer, err)
		}
		t.cur = n
		if !done {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
	}
	fired := binary.LittleEndian.Uint64(t.buf[:])
	t.count += fired
	t.cur = 0
	t.log.Debugf("pacing: timer fired %d (total %d)", fired, t.count)
	return nil
}

// Consume returns the current tick count and zeroes it.
func (t *Timer) Consume() uint64 {
	c := t.count
	t.count = 0
	return c
}

// Ticks peeks at the current tick count without resetting it.
func (t *Timer) Ticks() uint64 {
	return t.count
}

// Close releases the underlying OS wait handle.
func (t *Timer) Close() error {
	return t.src.close()
}
