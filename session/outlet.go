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
	"context"
	"time"

	"github.com/audiopiper/piper/transport"
)

// Outlet is the read-only consumer handle described in spec.md §4.7.
type Outlet struct {
	t      *transport.Transport
	period time.Duration
	log    Logger
	trace  *TraceWriter
}

// OutletOption configures an Outlet at construction time.
type OutletOption func(*Outlet)

// WithOutletTrace enables the optional s2-compressed debug trace log.
func WithOutletTrace(tw *TraceWriter) OutletOption {
	return func(o *Outlet) { o.trace = tw }
}

// WithOutletLogger overrides the default no-op Logger.
func WithOutletLogger(log Logger) OutletOption {
	return func(o *Outlet) { o.log = log }
}

// NewOutlet binds a read-only handle to t. period is the transport's
// block period, used to size Watch's spin-sleep increments.
func NewOutlet(t *transport.Transport, period time.Duration, opts ...OutletOption) *Outlet {
	o := &Outlet{t: t, period: period, log: nopLogger{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start returns transport.Start(): the lower bound of the visible
// window.
func (o *Outlet) Start() transport.Position { return o.t.Start() }

// Until returns transport.Middle(): one past the last readable
// position.
func (o *Outlet) Until() transport.Position { return o.t.Middle() }

// Window returns the transport's readable window size.
func (o *Outlet) Window() uint32 { return o.t.Readable() }

// Preamble returns a read-only slice over component 0 at readable
// position p.
func (o *Outlet) Preamble(p transport.Position) ([]byte, error) {
	return o.t.View(p, 0)
}

// Content returns a read-only slice over component 1 at readable
// position p.
func (o *Outlet) Content(p transport.Position) ([]byte, error) {
	return o.t.View(p, 1)
}

// Watch sleeps until Until() advances past its value at call time, or
// timeout elapses (a negative timeout blocks indefinitely), or ctx is
// canceled. It spin-sleeps in increments of period when the transport
// is active, 10*period when inactive, per spec.md §4.7.
func (o *Outlet) Watch(ctx context.Context, timeout time.Duration) error {
	start := o.Until()

	wctx := ctx
	var cancel context.CancelFunc
	if timeout >= 0 {
		wctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		if wctx.Err() != nil {
			return nil
		}
		if o.Until() != start {
			return nil
		}
		interval := 10 * o.period
		if o.t.Active() {
			interval = o.period
		}
		if err := sleepInterruptible(wctx, interval); err != nil {
			return err
		}
	}
}
