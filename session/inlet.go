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

// Package session provides the client-facing handles that bind a
// transport.Transport to a producer (Inlet, ProducerLoop) or a consumer
// (Outlet), per spec.md §4.6–§4.8.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/audiopiper/piper/transport"
)

// Inlet is the producer handle. Its constructor acquires a transport
// session (fallible); Close releases it (best-effort, matching the RAII
// note in spec.md §9: the destructor is infallible because any CAS
// failure there implies an external unclog already happened).
type Inlet struct {
	t       *transport.Transport
	session transport.Session
	runTag  uuid.UUID
	log     Logger
	trace   *TraceWriter
}

// InletOption configures an Inlet at construction time.
type InletOption func(*Inlet)

// WithTrace enables the optional s2-compressed debug trace log.
func WithTrace(tw *TraceWriter) InletOption {
	return func(in *Inlet) { in.trace = tw }
}

// WithInletLogger overrides the default no-op Logger.
func WithInletLogger(log Logger) InletOption {
	return func(in *Inlet) { in.log = log }
}

// NewInlet binds to t and calls Begin; a process must hold at most one
// Inlet per transport (a second construction attempt fails with
// ErrConcurrentSession, per spec.md §4.6).
func NewInlet(t *transport.Transport, opts ...InletOption) (*Inlet, error) {
	s, err := t.Begin()
	if err != nil {
		return nil, err
	}
	in := &Inlet{t: t, session: s, runTag: uuid.New(), log: nopLogger{}}
	for _, opt := range opts {
		opt(in)
	}
	in.log.Debugf("session: inlet %s acquired session %d", in.runTag, s)
	return in, nil
}

// RunTag returns the run-correlation UUID stamped at construction,
// independent of the protocol's numeric session ticket; used only to
// tie together log lines from one producer's lifetime.
func (in *Inlet) RunTag() uuid.UUID { return in.runTag }

// Session returns the transport session ticket this Inlet holds.
func (in *Inlet) Session() transport.Session { return in.session }

// Start returns transport.Middle(): the first writable position.
func (in *Inlet) Start() transport.Position { return in.t.Middle() }

// Until returns transport.Until(): the last writable position.
func (in *Inlet) Until() transport.Position { return in.t.Until() }

// Window returns the transport's writable window size.
func (in *Inlet) Window() uint32 { return in.t.Writable() }

// Preamble returns a mutable slice over component 0 (the Preamble) at
// writable position p.
func (in *Inlet) Preamble(p transport.Position) ([]byte, error) {
	return in.t.Input(in.session, p, 0)
}

// Content returns a mutable slice over component 1 (the PCM payload) at
// writable position p.
func (in *Inlet) Content(p transport.Position) ([]byte, error) {
	return in.t.Input(in.session, p, 1)
}

// Flush commits the block at the current Start() position, advancing
// the transport's write counter.
func (in *Inlet) Flush() error {
	return in.t.Flush(in.session)
}

// StampAndTrace writes the current time into the block's preamble at p
// and, if a TraceWriter was configured, appends a trace record.
func (in *Inlet) StampAndTrace(p transport.Position) error {
	pre, err := in.Preamble(p)
	if err != nil {
		return fmt.Errorf("session: stamp preamble: %w", err)
	}
	now := time.Now().UnixNano()
	EncodePreamble(pre, Preamble{Timestamp: now})
	if in.trace != nil {
		if err := in.trace.Record(p, now, 0); err != nil {
			in.log.Debugf("session: trace write failed: %v", err)
		}
	}
	return nil
}

// Close releases the held session. Any CAS failure here means the
// session was already reclaimed out-of-band (e.g. by unclog) and is
// intentionally not surfaced as a hard error, matching the infallible
// RAII destructor idiom from spec.md §9.
func (in *Inlet) Close() error {
	err := in.t.Finish(in.session)
	if err != nil {
		in.log.Debugf("session: inlet %s finish: %v (already reclaimed?)", in.runTag, err)
	}
	if in.trace != nil {
		if terr := in.trace.Close(); terr != nil {
			return terr
		}
	}
	return nil
}
