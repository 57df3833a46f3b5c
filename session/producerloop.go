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
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/audiopiper/piper/device"
	"github.com/audiopiper/piper/internal/pipererr"
	"github.com/audiopiper/piper/pacing"
	"github.com/audiopiper/piper/transport"
)

// ProducerLoop glues a capture source (raw PCM frames) to an Inlet,
// paced by a TokenBucket, per spec.md §4.8.
type ProducerLoop struct {
	inlet  *Inlet
	bucket *pacing.TokenBucket
	source device.Capture
	log    Logger
}

// NewProducerLoop constructs a loop driving inlet from source, spending
// one bucket token per flush.
func NewProducerLoop(inlet *Inlet, bucket *pacing.TokenBucket, source device.Capture, log Logger) *ProducerLoop {
	if log == nil {
		log = nopLogger{}
	}
	return &ProducerLoop{inlet: inlet, bucket: bucket, source: source, log: log}
}

// Run drives the loop until ctx is canceled or the capture source
// reaches end-of-stream, returning pipererr.ErrQuit or
// pipererr.ErrEndOfStream respectively (both are clean-shutdown
// conditions per spec.md §7's error policy).
func (pl *ProducerLoop) Run(ctx context.Context) error {
	cursor := pl.inlet.Start()

	if err := pl.bucket.Start(); err != nil {
		return fmt.Errorf("session: producer loop start: %w", err)
	}
	defer pl.bucket.Stop()

	for {
		if ctx.Err() != nil {
			return pipererr.ErrQuit
		}

		if pl.bucket.Tokens() == 0 {
			if err := pl.bucket.TryRefill(ctx, 50*time.Millisecond); err != nil {
				return fmt.Errorf("session: producer loop refill: %w", err)
			}
			continue
		}

		dest, err := pl.inlet.Content(cursor)
		if err != nil {
			return fmt.Errorf("session: producer loop content at %d: %w", cursor, err)
		}
		if _, err := pl.source.Read(dest); err != nil {
			if errors.Is(err, pipererr.ErrEndOfStream) {
				return err
			}
			return fmt.Errorf("session: producer loop capture read: %w", err)
		}

		if err := pl.inlet.StampAndTrace(cursor); err != nil {
			return err
		}
		if err := pl.inlet.Flush(); err != nil {
			return fmt.Errorf("session: producer loop flush at %d: %w", cursor, err)
		}
		if err := pl.bucket.Spend(1); err != nil {
			return fmt.Errorf("session: producer loop spend: %w", err)
		}

		pl.log.Debugf("session: producer flushed position %d", cursor)
		cursor++
	}
}

// DrainLoop implements the consumer protocol from spec.md §4.7: it
// copies each newly-visible block to sink, resyncing its cursor on lag
// detection rather than blocking indefinitely.
type DrainLoop struct {
	outlet  *Outlet
	bucket  *pacing.TokenBucket
	sink    device.Playback
	log     Logger
	dropped uint64
}

// NewDrainLoop constructs a loop draining outlet into sink, gated by
// bucket.
func NewDrainLoop(outlet *Outlet, bucket *pacing.TokenBucket, sink device.Playback, log Logger) *DrainLoop {
	if log == nil {
		log = nopLogger{}
	}
	return &DrainLoop{outlet: outlet, bucket: bucket, sink: sink, log: log}
}

// Dropped returns the total number of blocks discarded so far because
// the drain cursor fell behind the transport's readable window (the
// pipererr.ErrDataLoss condition from spec.md §7).
func (dl *DrainLoop) Dropped() uint64 {
	return atomic.LoadUint64(&dl.dropped)
}

// Run drives the drain loop until ctx is canceled, returning
// pipererr.ErrQuit.
func (dl *DrainLoop) Run(ctx context.Context) error {
	cursor := dl.outlet.Until()

	if err := dl.bucket.Start(); err != nil {
		return fmt.Errorf("session: drain loop start: %w", err)
	}
	defer dl.bucket.Stop()

	for {
		if ctx.Err() != nil {
			return pipererr.ErrQuit
		}

		if dl.bucket.Tokens() == 0 {
			if err := dl.bucket.TryRefill(ctx, 50*time.Millisecond); err != nil {
				return fmt.Errorf("session: drain loop refill: %w", err)
			}
			continue
		}
		if err := dl.bucket.Spend(1); err != nil {
			continue
		}

		if dl.outlet.Until() == cursor {
			if err := dl.outlet.Watch(ctx, -1); err != nil {
				return err
			}
			continue
		}

		if start := dl.outlet.Start(); start > cursor {
			skipped := start - cursor
			atomic.AddUint64(&dl.dropped, skipped)
			err := fmt.Errorf("%w: cursor %d behind start %d, discarding %d blocks", pipererr.ErrDataLoss, cursor, start, skipped)
			dl.log.Debugf("%v", err)
			cursor = dl.outlet.Until()
			continue
		}

		content, err := dl.outlet.Content(cursor)
		if err != nil {
			return fmt.Errorf("session: drain loop content at %d: %w", cursor, err)
		}
		if _, err := dl.sink.Write(content); err != nil {
			return fmt.Errorf("session: drain loop sink write: %w", err)
		}

		if pre, err := dl.outlet.Preamble(cursor); err == nil {
			p := DecodePreamble(pre)
			dl.log.Debugf("session: drain loop wrote position %d, lag %.2fms", cursor, p.LatencyMS())
			if dl.outlet.trace != nil {
				if err := dl.outlet.trace.Record(cursor, p.Timestamp, int64(p.Latency())); err != nil {
					dl.log.Debugf("session: trace write failed: %v", err)
				}
			}
		}

		cursor++
	}
}
