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

package device

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audiopiper/piper/internal/pipererr"
)

func TestMockWriteThenReadFIFO(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Configure(Config{Channels: 2, RateHz: 48000}))
	require.NoError(t, m.Start())

	n, err := m.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 4, n)

	out := make([]byte, 4)
	n, err = m.Read(out)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestMockReadBlocksUntilEnoughData(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Start())

	done := make(chan []byte, 1)
	go func() {
		out := make([]byte, 4)
		_, err := m.Read(out)
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(5 * time.Millisecond)
	_, err := m.Write([]byte{1, 2})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = m.Write([]byte{3, 4})
	require.NoError(t, err)

	select {
	case out := <-done:
		require.Equal(t, []byte{1, 2, 3, 4}, out)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after enough data was written")
	}
}

func TestMockReadReturnsEndOfStreamAfterStop(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Start())

	errc := make(chan error, 1)
	go func() {
		out := make([]byte, 4)
		_, err := m.Read(out)
		errc <- err
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.Stop())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, pipererr.ErrEndOfStream)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after Stop")
	}
}

func TestMockTryReadReturnsWhatIsAvailable(t *testing.T) {
	m := NewMock()
	_, err := m.Write([]byte{9, 9})
	require.NoError(t, err)

	out := make([]byte, 4)
	n, err := m.TryRead(out)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{9, 9}, out[:2])
}

func TestStdioWriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdio(&buf)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", buf.String())

	out := make([]byte, 5)
	n, err = s.Read(out)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(out))
}

func TestStdioReadReturnsEndOfStreamOnEOF(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ab")
	s := NewStdio(&buf)

	out := make([]byte, 4)
	_, err := s.Read(out)
	require.ErrorIs(t, err, pipererr.ErrEndOfStream)
}
