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

// Package medium owns the memory mapping of a backer.Backer's file and
// exposes typed, atomic-safe views over its header counters and
// component data regions. It never decides what those bytes mean (see
// package transport for the windowed protocol, package wire for the
// metadata codec); it only maps, unmaps, and hands back pointers.
package medium

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/audiopiper/piper/backer"
	"github.com/audiopiper/piper/internal/pipererr"
)

// Medium is a live mapping of a backer.Backer's file.
type Medium struct {
	b       *backer.Backer
	mapping []byte
}

// Map mmaps the entirety of b's backing file read-write and shared, so
// writes by any process holding the same file become visible to every
// other mapper without an explicit flush, matching file_linux.go's
// MAP_SHARED mmap call.
func Map(b *backer.Backer) (*Medium, error) {
	size := b.Layout().TotalSize()
	data, err := mmapFile(b.File(), size)
	if err != nil {
		return nil, fmt.Errorf("medium: mmap: %w", err)
	}
	m := &Medium{b: b, mapping: data}
	m.requireLockFreeAtomics()
	return m, nil
}

// requireLockFreeAtomics verifies that the three header counters land on
// genuinely 8-byte-aligned addresses within the mapping before anything
// touches them with sync/atomic. The atomic package documents 8-byte
// alignment of the word as the caller's responsibility on 32-bit ABIs
// (386, arm, 32-bit mips): an unaligned 64-bit word silently degrades
// from a single atomic instruction to a non-atomic read-modify-write on
// those platforms, which would corrupt the write/ticket/session
// protocol without ever returning an error. There is no safe degraded
// mode for that, so a misaligned mapping aborts the process immediately
// rather than running with unsound synchronization.
func (m *Medium) requireLockFreeAtomics() {
	l := m.Layout()
	words := [...]struct {
		name   string
		offset int64
	}{
		{"writes", l.WritesOffset()},
		{"tickets", l.TicketsOffset()},
		{"session", l.SessionOffset()},
	}
	for _, w := range words {
		addr := uintptr(unsafe.Pointer(&m.mapping[w.offset]))
		if addr%8 != 0 {
			panic(fmt.Sprintf("medium: %s counter at offset %d maps to address %#x, which is not 8-byte aligned; this platform cannot guarantee a lock-free 64-bit atomic here", w.name, w.offset, addr))
		}
	}
}

// Close unmaps the region. It does not close the underlying backer.
func (m *Medium) Close() error {
	if m.mapping == nil {
		return nil
	}
	err := munmapFile(m.mapping)
	m.mapping = nil
	return err
}

// Backer returns the backer.Backer this medium is mapped from.
func (m *Medium) Backer() *backer.Backer { return m.b }

// Layout is a shortcut for m.Backer().Layout().
func (m *Medium) Layout() backer.Layout { return m.b.Layout() }

func (m *Medium) atomicPtr64(offset int64) *uint64 {
	return (*uint64)(unsafe.Pointer(&m.mapping[offset]))
}

// Writes returns an atomic view of the header's monotonic write counter.
func (m *Medium) Writes() *uint64 {
	return m.atomicPtr64(m.Layout().WritesOffset())
}

// Tickets returns an atomic view of the header's monotonic ticket
// allocator.
func (m *Medium) Tickets() *uint64 {
	return m.atomicPtr64(m.Layout().TicketsOffset())
}

// Session returns an atomic view of the header's active-session word.
func (m *Medium) Session() *uint64 {
	return m.atomicPtr64(m.Layout().SessionOffset())
}

// LoadWrites performs an acquire-ordered load of the write counter. Go's
// memory model does not expose explicit acquire/release atomics, so
// every load here is a sequentially-consistent atomic.LoadUint64, which
// is at least as strong as acquire; see transport's package doc for the
// ordering argument this relies on.
func (m *Medium) LoadWrites() uint64 { return atomic.LoadUint64(m.Writes()) }

// StoreWrites performs a release-ordered store of the write counter.
func (m *Medium) StoreWrites(v uint64) { atomic.StoreUint64(m.Writes(), v) }

// AddWrites atomically advances the write counter by delta and returns
// the new value.
func (m *Medium) AddWrites(delta uint64) uint64 {
	return atomic.AddUint64(m.Writes(), delta)
}

// NextTicket atomically allocates and returns the next session ticket.
func (m *Medium) NextTicket() uint64 {
	return atomic.AddUint64(m.Tickets(), 1) - 1
}

// CASSession attempts to transition the session word from old to new,
// returning whether it succeeded. This is the sole synchronization point
// for session acquisition described in spec.md §4.6.
func (m *Medium) CASSession(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(m.Session(), old, new)
}

// LoadSession returns the currently active session id, or
// backer.InvalidSession if none.
func (m *Medium) LoadSession() uint64 {
	return atomic.LoadUint64(m.Session())
}

// Metadata returns the raw application metadata blob as a slice backed
// directly by the mapping (no copy); callers that need a stable snapshot
// should copy it themselves.
func (m *Medium) Metadata() []byte {
	l := m.Layout()
	off := l.MetadataOffset()
	return m.mapping[off : off+int64(l.MetadataSize())]
}

// Component returns a slice view over component i of the given slot.
// The returned slice aliases the mapping; writers and readers coordinate
// access purely through the transport's windowing protocol, never
// through a lock over this slice.
func (m *Medium) Component(slot, i uint32) ([]byte, error) {
	l := m.Layout()
	if i >= l.ComponentCount() {
		return nil, fmt.Errorf("%w: component index %d >= %d", pipererr.ErrInvalidArgument, i, l.ComponentCount())
	}
	off := l.ComponentOffset(slot, i)
	sz := int64(l.ComponentSize(i))
	return m.mapping[off : off+sz], nil
}
