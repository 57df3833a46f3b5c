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
	"io"

	"github.com/klauspost/compress/s2"
)

// traceRecordSize is the encoded size of one TraceWriter entry:
// position (u64) + timestamp (i64 ns) + latency (i64 ns).
const traceRecordSize = 8 + 8 + 8

// TraceWriter is the optional debug-trace log mentioned in spec.md §6
// ("a debug-trace flag on the playback shim is optional"): an
// s2-compressed append-only log of (position, timestamp, latency)
// triples, written by ProducerLoop and Outlet's drain loop when
// enabled.
type TraceWriter struct {
	w   *s2.Writer
	buf [traceRecordSize]byte
}

// NewTraceWriter wraps w (typically an *os.File) with s2 block
// compression.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{w: s2.NewWriter(w)}
}

// Record appends one (position, timestamp, latency) triple.
func (t *TraceWriter) Record(position uint64, timestamp int64, latency int64) error {
	binary.LittleEndian.PutUint64(t.buf[0:8], position)
	binary.LittleEndian.PutUint64(t.buf[8:16], uint64(timestamp))
	binary.LittleEndian.PutUint64(t.buf[16:24], uint64(latency))
	_, err := t.w.Write(t.buf[:])
	return err
}

// Close flushes any buffered records and closes the compressed stream.
func (t *TraceWriter) Close() error {
	return t.w.Close()
}

// traceReader decodes a TraceWriter's output, used by tests to verify
// round-tripping.
type traceReader struct {
	r *s2.Reader
}

func newTraceReader(r io.Reader) *traceReader {
	return &traceReader{r: s2.NewReader(r)}
}

func (t *traceReader) read() (position uint64, timestamp, latency int64, err error) {
	var buf [traceRecordSize]byte
	if _, err = io.ReadFull(t.r, buf[:]); err != nil {
		return 0, 0, 0, err
	}
	position = binary.LittleEndian.Uint64(buf[0:8])
	timestamp = int64(binary.LittleEndian.Uint64(buf[8:16]))
	latency = int64(binary.LittleEndian.Uint64(buf[16:24]))
	return position, timestamp, latency, nil
}
