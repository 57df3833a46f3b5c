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
	"flag"
	"fmt"
	"strconv"

	"github.com/audiopiper/piper/backer"
	"github.com/audiopiper/piper/session"
	"github.com/audiopiper/piper/wire"
)

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		exitf(1, "%v", err)
	}
	rest := fs.Args()
	if len(rest) != 7 {
		exitf(1, "create <path> <format> <channels> <rate> <period_ms> <buffer> <capacity>")
	}

	path, format := rest[0], rest[1]
	channels, err1 := strconv.Atoi(rest[2])
	rate, err2 := strconv.Atoi(rest[3])
	periodMs, err3 := strconv.ParseFloat(rest[4], 64)
	buffer, err4 := strconv.Atoi(rest[5])
	capacity, err5 := strconv.Atoi(rest[6])
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			exitf(2, "invalid numeric argument: %v", err)
		}
	}

	if buffer <= 1 {
		exitf(2, "buffer must be > 1, got %d", buffer)
	}
	if capacity <= buffer {
		exitf(2, "capacity must be > buffer, got capacity=%d buffer=%d", capacity, buffer)
	}

	bps, err := bytesPerSample(format)
	if err != nil {
		exitf(2, "%v", err)
	}

	framesPerPeriod := uint32(float64(rate) * periodMs / 1000.0)
	if framesPerPeriod == 0 {
		exitf(2, "period_ms=%v at rate=%d yields zero frames per period", periodMs, rate)
	}

	readable := uint32(buffer)
	writable := uint32(capacity - buffer)

	meta, err := wire.NewMetadata(format, uint32(channels), uint32(rate), bps, framesPerPeriod, readable, writable)
	if err != nil {
		exitf(2, "%v", err)
	}

	encoded, err := wire.Encode(meta)
	if err != nil {
		exitf(2, "encode metadata: %v", err)
	}

	componentSizes := []uint32{session.PreambleSize, meta.PeriodSize}
	b, err := backer.Create(path, encoded, componentSizes, uint32(capacity), 0o644)
	if err != nil {
		exitf(3, "create backing file: %v", err)
	}
	defer b.Close()

	fmt.Printf("created %s: slot_count=%d component_count=%d total_size=%d readable=%d writable=%d\n",
		path, b.Layout().SlotCount(), b.Layout().ComponentCount(), b.Layout().TotalSize(), readable, writable)
}
