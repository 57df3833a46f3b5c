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

import "fmt"

// bytesPerSample maps the small set of ALSA-style format names this CLI
// accepts to their sample width in bytes.
func bytesPerSample(format string) (uint32, error) {
	switch format {
	case "S8", "U8":
		return 1, nil
	case "S16_LE", "S16_BE", "U16_LE", "U16_BE":
		return 2, nil
	case "S24_LE", "S24_BE", "U24_LE", "U24_BE":
		return 3, nil
	case "S32_LE", "S32_BE", "U32_LE", "U32_BE", "FLOAT_LE", "FLOAT_BE":
		return 4, nil
	default:
		return 0, fmt.Errorf("unrecognized format %q", format)
	}
}
