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
	"bytes"
	"context"
	"errors"
	"flag"
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
)

func runDrain(args []string) {
	fs := flag.NewFlagSet("drain", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose logging")
	tracePath := fs.String("trace", "", "write a compressed debug trace log to this path")
	if err := fs.Parse(args); err != nil {
		exitf(1, "%v", err)
	}
	rest := fs.Args()
	if len(rest) != 1 {
		exitf(1, "drain <path> [-v] [-trace <file>]")
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

	period := time.Duration(meta.PeriodTime)

	var opts []session.OutletOption
	opts = append(opts, session.WithOutletLogger(zapAdapter{log}))
	if *tracePath != "" {
		f, err := os.Create(*tracePath)
		if err != nil {
			exitf(3, "create trace file: %v", err)
		}
		defer f.Close()
		tw := session.NewTraceWriter(f)
		defer tw.Close()
		opts = append(opts, session.WithOutletTrace(tw))
	}

	outlet := session.NewOutlet(tp, period, opts...)

	bucket, err := pacing.NewTokenBucket(uint64(meta.Readable)+1, 1, period, zapAdapter{log})
	if err != nil {
		exitf(3, "build token bucket: %v", err)
	}
	defer bucket.Close()

	sink := device.NewStdio(ioline.NewCombo(
		bytes.NewReader(nil),
		ioline.NewFlushingWriter(ioline.BufferedWriter(os.Stdout)),
	))

	loop := session.NewDrainLoop(outlet, bucket, sink, zapAdapter{log})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, pipererr.ErrQuit):
		log.Infow("drain: shutdown requested")
	case err != nil:
		exitf(3, "%v", err)
	}
}
