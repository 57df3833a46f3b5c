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

// Package winmath holds the small generic arithmetic helpers shared by
// backer's page-alignment offset computation and transport's windowing
// math: AlignUp serves backer's int64 file offsets and SaturatingSub
// transport's uint64 block positions, each written once over a generic
// integer type rather than per width.
package winmath

import "golang.org/x/exp/constraints"

// AlignUp rounds n up to the next multiple of align. If align is
// non-positive, n is returned unchanged.
func AlignUp[T constraints.Integer](n, align T) T {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// SaturatingSub returns a-b, or zero if that would underflow an
// unsigned type.
func SaturatingSub[T constraints.Unsigned](a, b T) T {
	if b > a {
		return 0
	}
	return a - b
}
