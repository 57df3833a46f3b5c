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

package pacing

import (
	"context"
	"fmt"
	"time"

	"github.com/audiopiper/piper/internal/pipererr"
)

// TokenBucket is a rate limiter built over a Timer, per spec.md §4.5:
// each elapsed period adds `fill` tokens, saturating at `capacity`.
type TokenBucket struct {
	timer    *Timer
	capacity uint64
	fill     uint64
	tokens   uint64
}

// NewTokenBucket constructs a TokenBucket of the given capacity and
// per-period fill amount, ticking at the given period.
func NewTokenBucket(capacity, fill uint64, period time.Duration, log Logger) (*TokenBucket, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", pipererr.ErrInvalidArgument)
	}
	if fill == 0 {
		return nil, fmt.Errorf("%w: fill must be positive", pipererr.ErrInvalidArgument)
	}
	timer, err := NewTimer(period, log)
	if err != nil {
		return nil, err
	}
	return &TokenBucket{timer: timer, capacity: capacity, fill: fill}, nil
}

// Start starts the underlying Timer and zeroes the token count.
func (b *TokenBucket) Start() error {
	b.tokens = 0
	return b.timer.Start()
}

// Stop stops the underlying Timer.
func (b *TokenBucket) Stop() error {
	return b.timer.Stop()
}

// Close releases the underlying Timer's OS resources.
func (b *TokenBucket) Close() error {
	return b.timer.Close()
}

// Tokens returns the current token count.
func (b *TokenBucket) Tokens() uint64 { return b.tokens }

// Spend requires tokens >= n, decrementing by n on success; otherwise it
// returns ErrInvalidArgument.
func (b *TokenBucket) Spend(n uint64) error {
	if b.tokens < n {
		return fmt.Errorf("%w: requested %d tokens, have %d", pipererr.ErrInvalidArgument, n, b.tokens)
	}
	b.tokens -= n
	return nil
}

// Refill blocks until at least one timer tick has fired, then drains
// the timer's accumulated ticks into the token count, saturating at
// capacity.
func (b *TokenBucket) Refill(ctx context.Context) error {
	if err := b.timer.Accumulate(ctx); err != nil {
		return err
	}
	b.drain()
	return nil
}

// TryRefill polls for ticks with the given timeout and drains whatever
// accumulated into the token count.
func (b *TokenBucket) TryRefill(ctx context.Context, timeout time.Duration) error {
	if err := b.timer.TryAccumulate(ctx, timeout); err != nil {
		return err
	}
	b.drain()
	return nil
}

func (b *TokenBucket) drain() {
	elapsed := b.timer.Consume()
	b.tokens += elapsed * b.fill
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}
