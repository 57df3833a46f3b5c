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

	"sigs.k8s.io/yaml"

	"github.com/audiopiper/piper/backer"
)

func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	asYAML := fs.Bool("yaml", false, "print the report as YAML instead of plain text")
	if err := fs.Parse(args); err != nil {
		exitf(1, "%v", err)
	}
	rest := fs.Args()
	if len(rest) != 1 {
		exitf(1, "info <path> [-yaml]")
	}

	b, err := backer.Open(rest[0])
	if err != nil {
		exitf(3, "open %s: %v", rest[0], err)
	}
	defer b.Close()

	report, err := b.BuildReport()
	if err != nil {
		exitf(3, "build report: %v", err)
	}

	if *asYAML {
		out, err := yaml.Marshal(report)
		if err != nil {
			exitf(3, "marshal yaml: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	fmt.Printf("path:             %s\n", report.Path)
	fmt.Printf("slot_count:       %d\n", report.SlotCount)
	fmt.Printf("component_count:  %d\n", report.ComponentCount)
	fmt.Printf("total_size:       %d\n", report.TotalSize)
	fmt.Printf("fingerprint:      %016x\n", report.Fingerprint)
	fmt.Printf("format:           %s\n", report.Metadata.Format)
	fmt.Printf("channels:         %d\n", report.Metadata.Channels)
	fmt.Printf("rate_hz:          %d\n", report.Metadata.RateHz)
	fmt.Printf("frame_size:       %d\n", report.Metadata.FrameSize)
	fmt.Printf("period_size:      %d\n", report.Metadata.PeriodSize)
	fmt.Printf("period_time_ns:   %d\n", report.Metadata.PeriodTime)
	fmt.Printf("readable:         %d\n", report.Metadata.Readable)
	fmt.Printf("writable:         %d\n", report.Metadata.Writable)
}
