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

	"github.com/audiopiper/piper/backer"
	"github.com/audiopiper/piper/medium"
	"github.com/audiopiper/piper/transport"
)

func runUnclog(args []string) {
	fs := flag.NewFlagSet("unclog", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		exitf(1, "%v", err)
	}
	rest := fs.Args()
	if len(rest) != 1 {
		exitf(1, "unclog <path>")
	}

	b, err := backer.Open(rest[0])
	if err != nil {
		exitf(3, "open %s: %v", rest[0], err)
	}
	defer b.Close()

	m, err := medium.Map(b)
	if err != nil {
		exitf(3, "mmap %s: %v", rest[0], err)
	}
	defer m.Close()

	tp := transport.New(m)
	wasActive := tp.Active()
	tp.Unclog()

	if wasActive {
		fmt.Printf("unclog %s: cleared an active session\n", rest[0])
	} else {
		fmt.Printf("unclog %s: no active session\n", rest[0])
	}
}
