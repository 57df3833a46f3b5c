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

package session

import (
	"encoding/binary"
	"time"
)

// PreambleSize is the fixed size of component 0, per spec.md §6: one
// 64-bit timestamp plus padding.
const PreambleSize = 16

// Preamble is the decoded form of a block's component 0.
type Preamble struct {
	// Timestamp is UnixNano at the moment the block was stamped by the
	// producer.
	Timestamp int64
}

// DecodePreamble reads a Preamble out of a component-0 slice.
func DecodePreamble(buf []byte) Preamble {
	return Preamble{Timestamp: int64(binary.LittleEndian.Uint64(buf))}
}

// EncodePreamble writes p into a component-0 slice; any bytes beyond
// the 8-byte timestamp are left untouched (padding, not part of the
// documented field).
func EncodePreamble(buf []byte, p Preamble) {
	binary.LittleEndian.PutUint64(buf, uint64(p.Timestamp))
}

// Latency returns the elapsed wall-clock duration since the block was
// stamped. This is supplemental to spec.md (present in the original
// source's Preamble::latency, not in the distilled spec) and is used by
// the drain loop's verbose logging to report consumer lag.
func (p Preamble) Latency() time.Duration {
	return time.Since(time.Unix(0, p.Timestamp))
}

// LatencyMS is Latency expressed in fractional milliseconds, the unit
// `piper drain -v` prints.
func (p Preamble) LatencyMS() float64 {
	return float64(p.Latency()) / float64(time.Millisecond)
}
