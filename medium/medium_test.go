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

package medium

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/audiopiper/piper/backer"
)

func newMappedTestFile(t *testing.T) (*backer.Backer, *Medium) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.piper")

	b, err := backer.Create(path, []byte("abcdefgh"), []uint32{64, 8}, 4, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	m, err := Map(b)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return b, m
}

func TestMapVerifiesCounterAlignment(t *testing.T) {
	b, m := newMappedTestFile(t)
	l := b.Layout()
	for _, off := range []int64{l.WritesOffset(), l.TicketsOffset(), l.SessionOffset()} {
		require.Zero(t, off%8, "header counter offset %d must be 8-byte aligned for a lock-free 64-bit atomic", off)
	}
	// Map already succeeded in newMappedTestFile without panicking, which
	// is requireLockFreeAtomics's only externally observable behavior on
	// a well-formed layout.
}

func TestMetadataViewMatchesFile(t *testing.T) {
	_, m := newMappedTestFile(t)
	require.Equal(t, []byte("abcdefgh"), m.Metadata())
}

func TestCounterAtomicsRoundtrip(t *testing.T) {
	_, m := newMappedTestFile(t)

	require.Equal(t, uint64(0), m.LoadWrites())
	require.Equal(t, uint64(10), m.AddWrites(10))
	require.Equal(t, uint64(10), m.LoadWrites())

	require.Equal(t, backer.InvalidSession, m.LoadSession())
	require.True(t, m.CASSession(backer.InvalidSession, 1))
	require.Equal(t, uint64(1), m.LoadSession())
	require.False(t, m.CASSession(backer.InvalidSession, 2), "CAS should fail once session is already held")

	first := m.NextTicket()
	second := m.NextTicket()
	require.Greater(t, second, first)
}

func TestComponentViewsDoNotOverlap(t *testing.T) {
	_, m := newMappedTestFile(t)

	c0s0, err := m.Component(0, 0)
	require.NoError(t, err)
	c0s1, err := m.Component(1, 0)
	require.NoError(t, err)
	c1s0, err := m.Component(0, 1)
	require.NoError(t, err)

	require.Len(t, c0s0, 64)
	require.Len(t, c1s0, 8)

	c0s0[0] = 0xAA
	require.NotEqual(t, byte(0xAA), c0s1[0])
	require.NotEqual(t, byte(0xAA), c1s0[0])

	_, err = m.Component(0, 2)
	require.Error(t, err)
}

func TestComponentSlotWraps(t *testing.T) {
	_, m := newMappedTestFile(t)

	base, err := m.Component(0, 0)
	require.NoError(t, err)
	wrapped, err := m.Component(4, 0)
	require.NoError(t, err)

	base[3] = 0x42
	require.Equal(t, byte(0x42), wrapped[3], "slot 4 should alias slot 0 for a 4-slot ring")
}
