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

// Package wire codes the application metadata blob for the audio use
// case described in spec.md §6: an ALSA-style format name, the PCM
// stream's shape, and the window sizes the backing file was created
// with. The documented fields are reproduced bit-exact; this package
// then appends a BLAKE2b-128 checksum as additional trailing bytes,
// which is purely additive since metadata is application-opaque past
// `metadata_size`'s accounting.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/audiopiper/piper/internal/pipererr"
)

// FormatNameSize is the fixed width of the ALSA-style format-name field
// (spec.md §9's resolved open question: string form, not the numeric
// code variant).
const FormatNameSize = 28

// ChecksumSize is the width of the trailing BLAKE2b-128 checksum this
// package appends.
const ChecksumSize = 16

// fixedSize is the size of the documented fields, before the checksum.
const fixedSize = 4 + FormatNameSize + 4 + 4 + 4 + 4 + 8 + 4 + 4

// Size is the total encoded size of a Metadata value, including the
// trailing checksum.
const Size = fixedSize + ChecksumSize

// CurrentVersion is the only version this package encodes or accepts.
const CurrentVersion = 1

// ErrChecksum is returned by Decode when the trailing checksum does not
// match the decoded fields, indicating the metadata blob was corrupted
// independently of the backing file's own size validation.
var ErrChecksum = errors.New("wire: metadata checksum mismatch")

// ErrUnsupportedVersion is returned by Decode for any version other
// than CurrentVersion.
var ErrUnsupportedVersion = errors.New("wire: unsupported metadata version")

// Metadata describes the PCM stream carried by a transport's blocks.
type Metadata struct {
	Version    uint32 `json:"version"`
	Format     string `json:"format"` // ALSA-style format name, e.g. "S16_LE"
	Channels   uint32 `json:"channels"`
	RateHz     uint32 `json:"rate_hz"`
	FrameSize  uint32 `json:"frame_size"`  // bytes per sample-frame
	PeriodSize uint32 `json:"period_size"` // bytes per block of component 1
	PeriodTime uint64 `json:"period_time"` // nanoseconds per block
	Readable   uint32 `json:"readable"`
	Writable   uint32 `json:"writable"`
}

// NewMetadata fills in Version and derives FrameSize/PeriodSize/
// PeriodTime from the given parameters. PeriodTime is rounded down to
// whole nanoseconds, so the compliance equation checked by Validate,
// period_size * 1e9 == frame_size * rate * period_time, holds only when
// framesPerPeriod * 1e9 is a multiple of rateHz.
func NewMetadata(format string, channels, rateHz uint32, bytesPerSample uint32, framesPerPeriod uint32, readable, writable uint32) (Metadata, error) {
	if len(format) == 0 || len(format) >= FormatNameSize {
		return Metadata{}, fmt.Errorf("%w: format name must be 1..%d bytes, got %d", pipererr.ErrInvalidArgument, FormatNameSize-1, len(format))
	}
	if channels == 0 || rateHz == 0 || bytesPerSample == 0 || framesPerPeriod == 0 {
		return Metadata{}, fmt.Errorf("%w: channels, rate, bytesPerSample, framesPerPeriod must all be positive", pipererr.ErrInvalidArgument)
	}

	frameSize := bytesPerSample * channels
	periodSize := frameSize * framesPerPeriod
	periodTime := uint64(framesPerPeriod) * 1_000_000_000 / uint64(rateHz)

	return Metadata{
		Version:    CurrentVersion,
		Format:     format,
		Channels:   channels,
		RateHz:     rateHz,
		FrameSize:  frameSize,
		PeriodSize: periodSize,
		PeriodTime: periodTime,
		Readable:   readable,
		Writable:   writable,
	}, nil
}

// Encode serializes m to its bit-exact wire representation, then
// appends a BLAKE2b-128 checksum over those bytes.
func Encode(m Metadata) ([]byte, error) {
	buf := make([]byte, fixedSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], m.Version)
	off += 4

	if len(m.Format) >= FormatNameSize {
		return nil, fmt.Errorf("%w: format name too long", pipererr.ErrInvalidArgument)
	}
	copy(buf[off:off+FormatNameSize], m.Format)
	off += FormatNameSize

	binary.LittleEndian.PutUint32(buf[off:], m.Channels)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.RateHz)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.FrameSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.PeriodSize)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], m.PeriodTime)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], m.Readable)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.Writable)
	off += 4

	sum := checksum(buf)
	return append(buf, sum...), nil
}

// Decode parses a Metadata value out of buf and verifies its trailing
// checksum.
func Decode(buf []byte) (Metadata, error) {
	if len(buf) < Size {
		return Metadata{}, fmt.Errorf("%w: metadata blob too short (%d < %d)", pipererr.ErrInvalidLayout, len(buf), Size)
	}

	fixed := buf[:fixedSize]
	want := checksum(fixed)
	got := buf[fixedSize : fixedSize+ChecksumSize]
	if !bytes.Equal(want, got) {
		return Metadata{}, ErrChecksum
	}

	var m Metadata
	off := 0
	m.Version = binary.LittleEndian.Uint32(fixed[off:])
	off += 4
	if m.Version != CurrentVersion {
		return Metadata{}, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, m.Version)
	}

	nameField := fixed[off : off+FormatNameSize]
	if i := bytes.IndexByte(nameField, 0); i >= 0 {
		m.Format = string(nameField[:i])
	} else {
		m.Format = string(nameField)
	}
	off += FormatNameSize

	m.Channels = binary.LittleEndian.Uint32(fixed[off:])
	off += 4
	m.RateHz = binary.LittleEndian.Uint32(fixed[off:])
	off += 4
	m.FrameSize = binary.LittleEndian.Uint32(fixed[off:])
	off += 4
	m.PeriodSize = binary.LittleEndian.Uint32(fixed[off:])
	off += 4
	m.PeriodTime = binary.LittleEndian.Uint64(fixed[off:])
	off += 8
	m.Readable = binary.LittleEndian.Uint32(fixed[off:])
	off += 4
	m.Writable = binary.LittleEndian.Uint32(fixed[off:])

	return m, nil
}

func checksum(fixed []byte) []byte {
	h, err := blake2b.New(ChecksumSize, nil)
	if err != nil {
		// ChecksumSize is a compile-time constant within blake2b's
		// supported [1,64] output range; this can never fail.
		panic(err)
	}
	h.Write(fixed)
	return h.Sum(nil)
}

// Validate checks m against a backing file's component layout, per the
// compliance rules in spec.md §6: frame_size and period_size must be
// internally consistent, there must be exactly two components, and
// component 0 (the Preamble) must be 16 bytes.
func Validate(m Metadata, componentCount uint32, component0Size, component1Size uint32) error {
	if componentCount != 2 {
		return fmt.Errorf("%w: metadata requires component_count == 2, got %d", pipererr.ErrInvalidLayout, componentCount)
	}
	if component0Size != 16 {
		return fmt.Errorf("%w: component 0 (preamble) must be 16 bytes, got %d", pipererr.ErrInvalidLayout, component0Size)
	}
	if m.PeriodSize != component1Size {
		return fmt.Errorf("%w: period_size %d does not match component 1 size %d", pipererr.ErrInvalidLayout, m.PeriodSize, component1Size)
	}
	// period_size * 1e9 == frame_size * rate * period_time
	lhs := uint64(m.PeriodSize) * 1_000_000_000
	rhs := uint64(m.FrameSize) * uint64(m.RateHz) * m.PeriodTime
	if lhs != rhs {
		return fmt.Errorf("%w: period_size*1e9 (%d) != frame_size*rate*period_time (%d)", pipererr.ErrInvalidLayout, lhs, rhs)
	}
	return nil
}
