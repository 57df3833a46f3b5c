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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiopiper/piper/backer"
	"github.com/audiopiper/piper/device"
	"github.com/audiopiper/piper/internal/ioline"
	"github.com/audiopiper/piper/internal/pipererr"
	"github.com/audiopiper/piper/medium"
	"github.com/audiopiper/piper/pacing"
	"github.com/audiopiper/piper/session"
	"github.com/audiopiper/piper/transport"
	"github.com/audiopiper/piper/wire"
)

func runFeed(args []string) {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose logging")
	tracePath := fs.String("trace", "", "write a compressed debug trace log to this path")
	if err := fs.Parse(args); err != nil {
		exitf(1, "%v", err)
	}
	rest := fs.Args()
	if len(rest) != 1 {
		exitf(1, "feed <path> [-v] [-trace <file>]")
	}

	log, err := newLogger(*verbose)
	if err != nil {
		exitf(3, "build logger: %v", err)
	}
	defer log.Sync()

	b, err := backer.Open(rest[0])
	if err != nil {
		exitf(3, "open %s: %v", rest[0], err)
	}
	defer b.Close()

	meta, err := decodeBackerMetadata(b)
	if err != nil {
		exitf(3, "%v", err)
	}

	m, err := medium.Map(b)
	if err != nil {
		exitf(3, "mmap %s: %v", rest[0], err)
	}
	defer m.Close()

	tp := transport.New(m)
	if err := tp.Reserve(meta.Writable); err != nil {
		exitf(3, "reserve window: %v", err)
	}

	var opts []session.InletOption
	opts = append(opts, session.WithInletLogger(zapAdapter{log}))
	if *tracePath != "" {
		f, err := os.Create(*tracePath)
		if err != nil {
			exitf(3, "create trace file: %v", err)
		}
		defer f.Close()
		opts = append(opts, session.WithTrace(session.NewTraceWriter(f)))
	}

	inlet, err := session.NewInlet(tp, opts...)
	if err != nil {
		exitf(3, "begin session: %v", err)
	}
	defer inlet.Close()
	log.Infow("feed starting", "run_tag", inlet.RunTag().String(), "path", rest[0])

	period := time.Duration(meta.PeriodTime)
	bucket, err := pacing.NewTokenBucket(uint64(meta.Writable)+1, 1, period, zapAdapter{log})
	if err != nil {
		exitf(3, "build token bucket: %v", err)
	}
	defer bucket.Close()

	capture := device.NewStdio(ioline.NewCombo(ioline.BufferedReader(os.Stdin), os.Stdout))

	loop := session.NewProducerLoop(inlet, bucket, capture, zapAdapter{log})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, pipererr.ErrEndOfStream):
		log.Infow("feed: end of stream, shutting down")
	case errors.Is(err, pipererr.ErrQuit):
		log.Infow("feed: shutdown requested")
	case err != nil:
		exitf(3, "%v", err)
	}
}

func decodeBackerMetadata(b *backer.Backer) (wire.Metadata, error) {
	raw, err := b.ReadMetadata()
	if err != nil {
		return wire.Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	m, err := wire.Decode(raw)
	if err != nil {
		return wire.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	if err := wire.Validate(m, b.Layout().ComponentCount(), b.Layout().ComponentSize(0), b.Layout().ComponentSize(1)); err != nil {
		return wire.Metadata{}, fmt.Errorf("validate metadata: %w", err)
	}
	return m, nil
}
