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

// Package transport implements the windowed producer/consumer protocol
// described by spec.md §4.3: session acquisition over a single atomic
// CAS word, and block visibility governed entirely by the monotonic
// `writes` counter.
//
// The only synchronizing variable is the write counter. A writer's
// Flush issues a release store; a reader's View issues an acquire load.
// Go's memory model exposes no explicit acquire/release atomics, so
// every access here goes through sync/atomic's sequentially consistent
// operations, which are at least as strong as the acquire/release pair
// this protocol needs.
package transport

import (
	"fmt"

	"github.com/audiopiper/piper/backer"
	"github.com/audiopiper/piper/internal/pipererr"
	"github.com/audiopiper/piper/internal/winmath"
	"github.com/audiopiper/piper/medium"
)

// Position is a monotonically increasing logical block index.
type Position = uint64

// Session is the ticket returned by Begin; it must be presented to
// Input, Flush, and Finish.
type Session = uint64

// Transport enforces the windowed protocol over a Medium.
type Transport struct {
	m        *medium.Medium
	capacity uint32
	readable uint32
	writable uint32
}

// New creates a Transport bound to m, with the default window split
// from spec.md §4.3: readable = capacity-1, writable = 1.
func New(m *medium.Medium) *Transport {
	capacity := m.Layout().SlotCount()
	return &Transport{
		m:        m,
		capacity: capacity,
		readable: capacity - 1,
		writable: 1,
	}
}

// Reserve grows the writable window to k and shrinks the readable
// window to capacity-k, matching the source behavior selected for the
// "reserve" open question in spec.md §9 (writable-only growth).
func (t *Transport) Reserve(k uint32) error {
	if k == 0 || k >= t.capacity {
		return fmt.Errorf("%w: reserve(%d) must be in [1,%d)", pipererr.ErrInvalidArgument, k, t.capacity)
	}
	t.writable = k
	t.readable = t.capacity - k
	return nil
}

// Capacity returns the slot count of the underlying ring.
func (t *Transport) Capacity() uint32 { return t.capacity }

// Readable returns the current readable window size.
func (t *Transport) Readable() uint32 { return t.readable }

// Writable returns the current writable window size.
func (t *Transport) Writable() uint32 { return t.writable }

// Start returns max(0, writes-readable): the lower bound of the visible
// window, from an acquire load of writes.
func (t *Transport) Start() Position {
	return winmath.SaturatingSub(t.m.LoadWrites(), uint64(t.readable))
}

// Middle returns writes: the first writable slot, one past the last
// readable slot.
func (t *Transport) Middle() Position {
	return t.m.LoadWrites()
}

// Until returns writes+writable-1: the last writable slot.
func (t *Transport) Until() Position {
	return t.m.LoadWrites() + uint64(t.writable) - 1
}

// Active reports whether a session is currently held.
func (t *Transport) Active() bool {
	return t.m.LoadSession() != backer.InvalidSession
}

// View returns a read-only slice over component `component` at position
// p, succeeding iff Start() <= p < Middle() at the moment of the
// (re-read) check.
func (t *Transport) View(p Position, component uint32) ([]byte, error) {
	start := t.Start()
	mid := t.m.LoadWrites()
	if p < start || p >= mid {
		return nil, fmt.Errorf("%w: position %d not in [%d,%d)", pipererr.ErrInvalidPosition, p, start, mid)
	}
	slot := uint32(p % uint64(t.capacity))
	return t.m.Component(slot, component)
}

// Begin allocates a new ticket and attempts to acquire the session. On
// success it returns the new session id; on CAS failure the ticket is
// discarded (monotonicity of the ticket counter is all that's needed;
// gaps are harmless) and ErrConcurrentSession is returned.
func (t *Transport) Begin() (Session, error) {
	s := t.m.NextTicket()
	if !t.m.CASSession(backer.InvalidSession, s) {
		return 0, pipererr.ErrConcurrentSession
	}
	return s, nil
}

// Input validates that s is the live session and that p is within
// [Middle(), Until()], returning a mutable slice over component i of
// the slot at p.
func (t *Transport) Input(s Session, p Position, component uint32) ([]byte, error) {
	if t.m.LoadSession() != s {
		return nil, fmt.Errorf("%w: session %d is not active", pipererr.ErrStaleSession, s)
	}
	mid := t.m.LoadWrites()
	until := mid + uint64(t.writable) - 1
	if p < mid || p > until {
		return nil, fmt.Errorf("%w: position %d not in [%d,%d]", pipererr.ErrInvalidArgument, p, mid, until)
	}
	slot := uint32(p % uint64(t.capacity))
	return t.m.Component(slot, component)
}

// Flush validates that s is the live session, then advances writes by
// one with release semantics. The block at the old writes value becomes
// readable; the block at writes+writable becomes writable, its prior
// contents now undefined to readers.
func (t *Transport) Flush(s Session) error {
	if t.m.LoadSession() != s {
		return fmt.Errorf("%w: session %d is not active", pipererr.ErrStaleSession, s)
	}
	t.m.AddWrites(1)
	return nil
}

// Finish releases session s, resetting the session word to INVALID. It
// errors if the currently active session is not s.
func (t *Transport) Finish(s Session) error {
	if !t.m.CASSession(s, backer.InvalidSession) {
		return fmt.Errorf("%w: session %d is not the active session", pipererr.ErrStaleSession, s)
	}
	return nil
}

// Unclog force-resets the session word to INVALID regardless of its
// current value, reclaiming an orphaned session after an abnormal
// producer exit. This is always an explicit operator action (see
// spec.md §5 "Liveness"), never automatic.
func (t *Transport) Unclog() {
	for {
		cur := t.m.LoadSession()
		if cur == backer.InvalidSession {
			return
		}
		if t.m.CASSession(cur, backer.InvalidSession) {
			return
		}
	}
}
