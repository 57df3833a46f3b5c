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
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audiopiper/piper/backer"
	"github.com/audiopiper/piper/device"
	"github.com/audiopiper/piper/medium"
	"github.com/audiopiper/piper/pacing"
	"github.com/audiopiper/piper/transport"
)

func newTestTransport(t *testing.T, slotCount uint32, contentSize uint32) *transport.Transport {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.piper")

	b, err := backer.Create(path, []byte("m"), []uint32{PreambleSize, contentSize}, slotCount, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	m, err := medium.Map(b)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return transport.New(m)
}

func TestInletLifecycleRejectsSecondInlet(t *testing.T) {
	tp := newTestTransport(t, 4, 8)

	in, err := NewInlet(tp)
	require.NoError(t, err)
	require.NotEqual(t, in.RunTag().String(), "")

	_, err = NewInlet(tp)
	require.Error(t, err)

	require.NoError(t, in.Close())

	in2, err := NewInlet(tp)
	require.NoError(t, err)
	require.NoError(t, in2.Close())
}

func TestInletStampAndTraceRoundtrips(t *testing.T) {
	tp := newTestTransport(t, 4, 8)
	in, err := NewInlet(tp)
	require.NoError(t, err)
	defer in.Close()

	p := in.Start()
	require.NoError(t, in.StampAndTrace(p))
	require.NoError(t, in.Flush())

	raw, err := tp.View(p, 0)
	require.NoError(t, err)
	pre := DecodePreamble(raw)
	require.WithinDuration(t, time.Now(), time.Unix(0, pre.Timestamp), time.Second)
}

func TestOutletReflectsTransportWindow(t *testing.T) {
	tp := newTestTransport(t, 4, 8)
	in, err := NewInlet(tp)
	require.NoError(t, err)
	defer in.Close()

	out := NewOutlet(tp, time.Millisecond)
	require.Equal(t, tp.Readable(), out.Window())

	require.NoError(t, in.StampAndTrace(in.Start()))
	require.NoError(t, in.Flush())

	require.Equal(t, tp.Middle(), out.Until())
	content, err := out.Content(0)
	require.NoError(t, err)
	require.Len(t, content, 8)
}

func TestWatchReturnsWhenUntilAdvances(t *testing.T) {
	tp := newTestTransport(t, 4, 8)
	in, err := NewInlet(tp)
	require.NoError(t, err)
	defer in.Close()

	out := NewOutlet(tp, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- out.Watch(context.Background(), 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, in.StampAndTrace(in.Start()))
	require.NoError(t, in.Flush())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after Until() advanced")
	}
}

func TestWatchTimesOutWhenNothingHappens(t *testing.T) {
	tp := newTestTransport(t, 4, 8)
	out := NewOutlet(tp, time.Millisecond)

	start := time.Now()
	err := out.Watch(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

// TestProducerAndDrainLoopEndToEnd exercises E3-style producer/consumer
// interplay: a DrainLoop started at the current tail must observe
// blocks as a concurrently running ProducerLoop flushes them.
func TestProducerAndDrainLoopEndToEnd(t *testing.T) {
	const slotCount = 16
	const contentSize = 4
	tp := newTestTransport(t, slotCount, contentSize)

	in, err := NewInlet(tp)
	require.NoError(t, err)
	defer in.Close()

	bucketProducer, err := pacing.NewTokenBucket(4, 1, time.Millisecond, nil)
	require.NoError(t, err)
	defer bucketProducer.Close()

	capture := device.NewMock()
	const numBlocks = 20
	for i := 0; i < numBlocks; i++ {
		buf := bytes.Repeat([]byte{byte(i)}, contentSize)
		_, err := capture.Write(buf)
		require.NoError(t, err)
	}
	require.NoError(t, capture.Stop()) // signals end-of-stream once drained

	producerLoop := NewProducerLoop(in, bucketProducer, capture, nil)

	out := NewOutlet(tp, time.Millisecond)
	sink := device.NewMock()
	bucketConsumer, err := pacing.NewTokenBucket(slotCount, 1, time.Millisecond, nil)
	require.NoError(t, err)
	defer bucketConsumer.Close()
	drainLoop := NewDrainLoop(out, bucketConsumer, sink, nil)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		_ = drainLoop.Run(drainCtx) // ends via ctx deadline (ErrQuit)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = producerLoop.Run(ctx)
	require.Error(t, err) // ends via end-of-stream once the mock buffer drains

	require.Equal(t, transport.Position(numBlocks), tp.Middle())

	time.Sleep(100 * time.Millisecond) // let the drain loop catch up
	drainCancel()
	<-drainDone

	got := make([]byte, contentSize)
	n, err := sink.TryRead(got)
	require.NoError(t, err)
	require.Greater(t, n, 0, "drain loop should have written at least one block to the sink")
}

// TestDrainLoopResyncsAfterDataLoss exercises E3/property 9 (consumer
// lag detection): a drain loop held at an old cursor must notice once
// the writer has advanced the readable window's start past it, discard
// the stale run via pipererr.ErrDataLoss, and resync to Until() rather
// than blocking or reading garbage.
func TestDrainLoopResyncsAfterDataLoss(t *testing.T) {
	const slotCount = 8
	const contentSize = 4
	tp := newTestTransport(t, slotCount, contentSize)

	in, err := NewInlet(tp)
	require.NoError(t, err)
	defer in.Close()

	require.NoError(t, in.StampAndTrace(in.Start()))
	require.NoError(t, in.Flush())

	out := NewOutlet(tp, time.Millisecond)
	sink := device.NewMock()
	bucket, err := pacing.NewTokenBucket(4*slotCount, 4*slotCount, time.Millisecond, nil)
	require.NoError(t, err)
	defer bucket.Close()
	drainLoop := NewDrainLoop(out, bucket, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = drainLoop.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond) // let Run capture its initial cursor at the current tail

	// Flush capacity-many more blocks so Start() (writes - readable)
	// jumps past the cursor the drain loop captured above.
	for i := 0; i < slotCount; i++ {
		require.NoError(t, in.StampAndTrace(in.Start()))
		require.NoError(t, in.Flush())
	}

	require.Eventually(t, func() bool {
		return drainLoop.Dropped() > 0
	}, time.Second, 5*time.Millisecond, "drain loop should have detected lag and discarded stale blocks")

	cancel()
	<-done
}
