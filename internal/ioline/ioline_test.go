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

package ioline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComboReadsAndWritesSeparately(t *testing.T) {
	in := bytes.NewBufferString("hello")
	var out bytes.Buffer

	c := NewCombo(in, &out)

	buf := make([]byte, 5)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	_, err = c.Write([]byte("world"))
	require.NoError(t, err)
	require.Equal(t, "world", out.String())
}

func TestFlushingWriterFlushesImmediately(t *testing.T) {
	var out bytes.Buffer
	bw := BufferedWriter(&out)
	fw := NewFlushingWriter(bw)

	_, err := fw.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, "abc", out.String(), "write should be visible without an explicit Flush call")
}
