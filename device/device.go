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

// Package device defines the capability-set interfaces that playback
// and capture devices bind to (spec.md §9: "capability sets, no
// inheritance"), and provides the two variants this repo implements
// concretely: Mock (in-memory, for tests) and Stdio (raw PCM bytes over
// a file or pipe, the minimal concrete thing `feed`/`drain` need). A
// real ALSA/host-audio binding is out of scope (spec.md §1).
package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/audiopiper/piper/internal/pipererr"
)

// Config describes the PCM stream a device is configured for.
type Config struct {
	FormatName string // ALSA-style format name, e.g. "S16_LE"
	Channels   uint32
	RateHz     uint32
	FrameSize  uint32 // bytes per sample-frame
	PeriodSize uint32 // bytes per period (one transport block of component 1)
}

// Playback is the capability set a producer-side device must satisfy.
type Playback interface {
	Configure(Config) error
	Start() error
	Stop() error
	// Write blocks until all of p has been accepted.
	Write(p []byte) (int, error)
	// TryWrite accepts as much of p as is currently possible without
	// blocking, returning the number of bytes accepted.
	TryWrite(p []byte) (int, error)
}

// Capture is the capability set a consumer-side device must satisfy.
type Capture interface {
	Configure(Config) error
	Start() error
	Stop() error
	// Read blocks until p is completely filled.
	Read(p []byte) (int, error)
	// TryRead fills as much of p as is currently available without
	// blocking.
	TryRead(p []byte) (int, error)
}

// Mock is an in-memory Playback and Capture implementation backed by an
// unbounded byte queue, intended for tests that need a device without any
// real I/O.
type Mock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cfg     Config
	started bool
	buf     []byte
	closed  bool
}

// NewMock constructs an unconfigured, unstarted Mock device.
func NewMock() *Mock {
	m := &Mock{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Configure records cfg; Mock accepts any configuration.
func (m *Mock) Configure(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

// Config returns the most recently configured Config.
func (m *Mock) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Start marks the device as running.
func (m *Mock) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Stop marks the device as stopped and wakes any blocked readers.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	m.closed = true
	m.cond.Broadcast()
	return nil
}

// Write appends p to the device's internal queue, as a producer would
// feed frames into a real device's buffer, and wakes any blocked reader.
func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = append(m.buf, p...)
	m.cond.Broadcast()
	return len(p), nil
}

// TryWrite behaves identically to Write for Mock: there is no bounded
// backing buffer to reject writes from.
func (m *Mock) TryWrite(p []byte) (int, error) {
	return m.Write(p)
}

// Read blocks until len(p) bytes are available, then copies them out,
// FIFO.
func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.buf) < len(p) {
		if m.closed {
			return 0, fmt.Errorf("%w: mock device stopped", pipererr.ErrEndOfStream)
		}
		m.cond.Wait()
	}
	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// TryRead copies out as many bytes as are currently queued, up to
// len(p), without blocking.
func (m *Mock) TryRead(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// Stdio is a Playback/Capture device that reads or writes raw PCM bytes
// from an underlying file or pipe (e.g. stdin/stdout), the minimal
// concrete thing `piper feed`/`piper drain` need in place of a real
// ALSA binding.
type Stdio struct {
	rw  io.ReadWriter
	cfg Config
}

// NewStdio wraps rw (typically os.Stdin for capture, os.Stdout for
// playback) as a device.
func NewStdio(rw io.ReadWriter) *Stdio {
	return &Stdio{rw: rw}
}

// Configure records cfg; Stdio does no format negotiation of its own.
func (s *Stdio) Configure(cfg Config) error {
	s.cfg = cfg
	return nil
}

// Config returns the most recently configured Config.
func (s *Stdio) Config() Config { return s.cfg }

// Start is a no-op for Stdio: the underlying stream is always "running".
func (s *Stdio) Start() error { return nil }

// Stop is a no-op for Stdio; closing the underlying stream is the
// caller's responsibility.
func (s *Stdio) Stop() error { return nil }

// Write writes p to the underlying stream, blocking until fully
// written.
func (s *Stdio) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := s.rw.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TryWrite is identical to Write: a plain io.Writer has no non-blocking
// mode to exploit.
func (s *Stdio) TryWrite(p []byte) (int, error) {
	return s.Write(p)
}

// Read fills p completely from the underlying stream. At end of input,
// including a short final read, it returns an error wrapping
// pipererr.ErrEndOfStream; the io.EOF or io.ErrUnexpectedEOF text is
// kept in the message but is not itself wrapped.
func (s *Stdio) Read(p []byte) (int, error) {
	n, err := io.ReadFull(s.rw, p)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, fmt.Errorf("%w: %v", pipererr.ErrEndOfStream, err)
	}
	return n, err
}

// TryRead is identical to Read: a plain io.Reader has no non-blocking
// mode to exploit.
func (s *Stdio) TryRead(p []byte) (int, error) {
	return s.Read(p)
}
