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

import "testing"

func TestBytesPerSampleKnownFormats(t *testing.T) {
	cases := map[string]uint32{
		"S8": 1, "U8": 1,
		"S16_LE": 2, "U16_BE": 2,
		"S24_LE": 3, "U24_BE": 3,
		"S32_LE": 4, "FLOAT_BE": 4,
	}
	for format, want := range cases {
		got, err := bytesPerSample(format)
		if err != nil {
			t.Fatalf("bytesPerSample(%q): unexpected error %v", format, err)
		}
		if got != want {
			t.Errorf("bytesPerSample(%q) = %d, want %d", format, got, want)
		}
	}
}

func TestBytesPerSampleRejectsUnknown(t *testing.T) {
	if _, err := bytesPerSample("MYSTERY_FORMAT"); err == nil {
		t.Fatal("expected an error for an unrecognized format")
	}
}
