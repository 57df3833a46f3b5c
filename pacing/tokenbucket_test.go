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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audiopiper/piper/internal/pipererr"
)

func newTestBucket(capacity, fill uint64, period time.Duration) (*TokenBucket, *fakeSource) {
	timer, src := newFakeTimer(period)
	return &TokenBucket{timer: timer, capacity: capacity, fill: fill}, src
}

func TestSpendRequiresSufficientTokens(t *testing.T) {
	b, src := newTestBucket(5, 1, time.Millisecond)
	require.NoError(t, b.Start())

	require.ErrorIs(t, b.Spend(1), pipererr.ErrInvalidArgument)

	src.fire(3)
	require.NoError(t, b.Refill(context.Background()))
	require.Equal(t, uint64(3), b.Tokens())

	require.NoError(t, b.Spend(2))
	require.Equal(t, uint64(1), b.Tokens())

	require.ErrorIs(t, b.Spend(5), pipererr.ErrInvalidArgument)
}

func TestRefillSaturatesAtCapacity(t *testing.T) {
	b, src := newTestBucket(4, 2, time.Millisecond)
	require.NoError(t, b.Start())

	src.fire(10) // 10 ticks * fill 2 = 20 tokens, should saturate at 4
	require.NoError(t, b.Refill(context.Background()))
	require.Equal(t, uint64(4), b.Tokens())
}

// TestRateConformance checks property 8 / E5 of spec.md §8: over a
// window of simulated ticks, TokenBucket(capacity=c, fill=1) permits a
// number of spends within [ticks-c, ticks+c].
func TestRateConformance(t *testing.T) {
	const capacity = 10
	b, src := newTestBucket(capacity, 1, time.Millisecond)
	require.NoError(t, b.Start())

	const totalTicks = 100
	spends := 0
	for i := 0; i < totalTicks; i++ {
		src.fire(1)
		require.NoError(t, b.Refill(context.Background()))

		for b.Spend(1) == nil {
			spends++
		}
	}

	require.GreaterOrEqual(t, spends, totalTicks-capacity)
	require.LessOrEqual(t, spends, totalTicks+capacity)
}
