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

// Package backer owns the transport's backing file: it computes the
// page-aligned layout of the header, metadata blob, and per-component
// data areas, and knows how to create, validate, and re-open that layout.
//
// Layout is purely a matter of arithmetic over (metadata_size,
// component_sizes, slot_count, page_size); backer never maps the file
// into memory itself (see package medium for that).
package backer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dchest/siphash"

	"github.com/audiopiper/piper/internal/pipererr"
	"github.com/audiopiper/piper/internal/winmath"
)

const (
	// MaxComponents is the largest number of components a block may have.
	MaxComponents = 16

	offSlotCount      = 0
	offComponentCount = 4
	offMetadataSize   = 8
	offComponentSizes = 12

	// componentSizesSize covers the fixed array of per-component sizes.
	// offComponentSizes (12) + componentSizesSize (64) lands on 76, which
	// is not 8-byte aligned; headerPadSize pushes the three atomic
	// counters that follow onto an 8-byte boundary, which sync/atomic's
	// 64-bit operations require for a true lock-free atomic on 32-bit
	// ABIs (see medium.requireLockFreeAtomics).
	componentSizesSize = 4 * MaxComponents
	headerPadSize      = 4

	offWrites  = offComponentSizes + componentSizesSize + headerPadSize // 80
	offTickets = offWrites + 8                                          // 88
	offSession = offTickets + 8                                         // 96

	// headerSize is the fixed on-disk size of the header: 3 u32 scalars +
	// 16 u32 component sizes + 4 bytes pad + 3 atomic u64 counters.
	headerSize = offSession + 8
)

// InvalidSession is the sentinel value of the session atomic meaning "no
// active writer".
const InvalidSession uint64 = 0

// firstTicket is the initial value of the ticket allocator; the first
// session acquired therefore has id 1.
const firstTicket uint64 = 1

// Layout is the deterministic, page-aligned arrangement of a backing
// file's regions, computed from its defining parameters.
type Layout struct {
	pageSize         int64
	slotCount        uint32
	componentCount   uint32
	metadataSize     uint32
	componentSizes   [MaxComponents]uint32
	metadataOffset   int64
	componentOffsets [MaxComponents]int64
	totalSize        int64
}

// computeLayout validates the defining parameters and lays out the file
// as described in spec.md §3: header (padded to a page), metadata blob
// (padded to a page), then each component's array in turn (each padded
// to a page so that no component of any slot shares a cache line with
// the header or with another component).
func computeLayout(metadataSize uint32, componentSizes []uint32, slotCount uint32, pageSize int64) (Layout, error) {
	var l Layout
	if slotCount < 2 {
		return l, fmt.Errorf("%w: slot_count must be >= 2, got %d", pipererr.ErrInvalidArgument, slotCount)
	}
	if len(componentSizes) < 1 || len(componentSizes) > MaxComponents {
		return l, fmt.Errorf("%w: component_count must be in [1,%d], got %d", pipererr.ErrInvalidArgument, MaxComponents, len(componentSizes))
	}
	if metadataSize == 0 {
		return l, fmt.Errorf("%w: metadata_size must be > 0", pipererr.ErrInvalidArgument)
	}
	for i, sz := range componentSizes {
		if sz == 0 {
			return l, fmt.Errorf("%w: component_sizes[%d] must be > 0", pipererr.ErrInvalidArgument, i)
		}
	}

	l.pageSize = pageSize
	l.slotCount = slotCount
	l.componentCount = uint32(len(componentSizes))
	l.metadataSize = metadataSize
	copy(l.componentSizes[:], componentSizes)

	l.metadataOffset = winmath.AlignUp(headerSize, pageSize)
	next := winmath.AlignUp(l.metadataOffset+int64(metadataSize), pageSize)
	for i, sz := range componentSizes {
		l.componentOffsets[i] = next
		areaSize := int64(slotCount) * int64(sz)
		next = winmath.AlignUp(next+areaSize, pageSize)
	}
	l.totalSize = next
	return l, nil
}

// PageSize returns the OS page size used for this layout.
func (l Layout) PageSize() int64 { return l.pageSize }

// SlotCount returns the number of slots in the ring.
func (l Layout) SlotCount() uint32 { return l.slotCount }

// ComponentCount returns the number of components per block.
func (l Layout) ComponentCount() uint32 { return l.componentCount }

// MetadataSize returns the size in bytes of the application metadata blob.
func (l Layout) MetadataSize() uint32 { return l.metadataSize }

// MetadataOffset returns the file offset of the metadata blob.
func (l Layout) MetadataOffset() int64 { return l.metadataOffset }

// ComponentSize returns the per-slot size in bytes of component i.
func (l Layout) ComponentSize(i uint32) uint32 {
	if i >= l.componentCount {
		return 0
	}
	return l.componentSizes[i]
}

// ComponentOffset returns the file offset of component i of the given slot.
func (l Layout) ComponentOffset(slot, i uint32) int64 {
	if i >= l.componentCount {
		return -1
	}
	return l.componentOffsets[i] + int64(slot%l.slotCount)*int64(l.componentSizes[i])
}

// ComponentAreaOffset returns the file offset of the start of component
// i's contiguous area (slot 0's instance of that component).
func (l Layout) ComponentAreaOffset(i uint32) int64 {
	if i >= l.componentCount {
		return -1
	}
	return l.componentOffsets[i]
}

// TotalSize returns the total size in bytes the backing file must have.
func (l Layout) TotalSize() int64 { return l.totalSize }

// HeaderOffset, HeaderSize, WritesOffset, TicketsOffset, and
// SessionOffset expose the fixed offsets within the header, matching
// spec.md §6's bit-exact table.
func (l Layout) HeaderOffset() int64  { return 0 }
func (l Layout) HeaderSize() int64    { return headerSize }
func (l Layout) WritesOffset() int64  { return offWrites }
func (l Layout) TicketsOffset() int64 { return offTickets }
func (l Layout) SessionOffset() int64 { return offSession }

// Fingerprint returns a SipHash-2-4 digest over the encoded header and
// metadata blob, intended purely as an operator-facing convenience (see
// `piper info`): two backing files with identical fingerprints have
// identical layout and metadata without needing a byte-for-byte diff.
func (l Layout) Fingerprint(metadata []byte) uint64 {
	buf := encodeHeader(l, 0, firstTicket, InvalidSession)
	buf = append(buf, metadata...)
	return siphash.Hash(0, 0, buf)
}

func encodeHeader(l Layout, writes, tickets, session uint64) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[offSlotCount:], l.slotCount)
	binary.LittleEndian.PutUint32(buf[offComponentCount:], l.componentCount)
	binary.LittleEndian.PutUint32(buf[offMetadataSize:], l.metadataSize)
	for i := 0; i < MaxComponents; i++ {
		binary.LittleEndian.PutUint32(buf[offComponentSizes+4*i:], l.componentSizes[i])
	}
	binary.LittleEndian.PutUint64(buf[offWrites:], writes)
	binary.LittleEndian.PutUint64(buf[offTickets:], tickets)
	binary.LittleEndian.PutUint64(buf[offSession:], session)
	return buf
}

func decodeLayout(buf []byte, pageSize int64) (Layout, error) {
	if len(buf) < headerSize {
		return Layout{}, fmt.Errorf("%w: header truncated (%d bytes)", pipererr.ErrInvalidLayout, len(buf))
	}
	slotCount := binary.LittleEndian.Uint32(buf[offSlotCount:])
	componentCount := binary.LittleEndian.Uint32(buf[offComponentCount:])
	metadataSize := binary.LittleEndian.Uint32(buf[offMetadataSize:])

	if slotCount < 2 {
		return Layout{}, fmt.Errorf("%w: slot_count %d < 2", pipererr.ErrInvalidLayout, slotCount)
	}
	if componentCount < 1 || componentCount > MaxComponents {
		return Layout{}, fmt.Errorf("%w: component_count %d out of [1,%d]", pipererr.ErrInvalidLayout, componentCount, MaxComponents)
	}
	if metadataSize == 0 {
		return Layout{}, fmt.Errorf("%w: metadata_size is 0", pipererr.ErrInvalidLayout)
	}

	sizes := make([]uint32, componentCount)
	for i := range sizes {
		sz := binary.LittleEndian.Uint32(buf[offComponentSizes+4*i:])
		if sz == 0 {
			return Layout{}, fmt.Errorf("%w: component_sizes[%d] is 0", pipererr.ErrInvalidLayout, i)
		}
		sizes[i] = sz
	}

	return computeLayout(metadataSize, sizes, slotCount, pageSize)
}

// Backer owns the backing file handle and its validated Layout.
type Backer struct {
	path   string
	file   *os.File
	layout Layout
}

// Path returns the backing file's path.
func (b *Backer) Path() string { return b.path }

// File returns the open backing file handle.
func (b *Backer) File() *os.File { return b.file }

// Layout returns the file's computed layout.
func (b *Backer) Layout() Layout { return b.layout }

// Close closes the backing file handle. It does not remove the file.
func (b *Backer) Close() error {
	return b.file.Close()
}

// Create lays out a new backing file at path with the given application
// metadata, component sizes, and slot count, per spec.md §4.1. The file
// must not already exist.
func Create(path string, metadata []byte, componentSizes []uint32, slotCount uint32, mode os.FileMode) (*Backer, error) {
	layout, err := computeLayout(uint32(len(metadata)), componentSizes, slotCount, int64(osPageSize()))
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return nil, fmt.Errorf("backer: create %s: %w", path, err)
	}
	b := &Backer{path: path, file: f, layout: layout}

	if err := allocate(f, layout.TotalSize()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("backer: allocate %s: %w", path, err)
	}

	header := encodeHeader(layout, 0, firstTicket, InvalidSession)
	if _, err := f.WriteAt(header, 0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("backer: write header %s: %w", path, err)
	}
	if _, err := f.WriteAt(metadata, layout.MetadataOffset()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("backer: write metadata %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("backer: fsync %s: %w", path, err)
	}

	return b, nil
}

// Open re-opens an existing backing file, validating its header and
// recomputing its layout. Layout mismatches (including a file truncated
// shorter than its own declared layout) are reported as ErrInvalidLayout.
func Open(path string) (*Backer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("backer: open %s: %w", path, err)
	}

	raw := make([]byte, headerSize)
	n, err := f.ReadAt(raw, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("backer: read header %s: %w", path, err)
	}

	layout, err := decodeLayout(raw[:n], int64(osPageSize()))
	if err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("backer: stat %s: %w", path, err)
	}
	if info.Size() < layout.TotalSize() {
		f.Close()
		return nil, fmt.Errorf("%w: file %s is %d bytes, layout requires %d", pipererr.ErrInvalidLayout, path, info.Size(), layout.TotalSize())
	}

	return &Backer{path: path, file: f, layout: layout}, nil
}

// ReadMetadata reads the raw application metadata blob from the backing
// file.
func (b *Backer) ReadMetadata() ([]byte, error) {
	buf := make([]byte, b.layout.MetadataSize())
	if _, err := b.file.ReadAt(buf, b.layout.MetadataOffset()); err != nil {
		return nil, fmt.Errorf("backer: read metadata: %w", err)
	}
	return buf, nil
}
