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

package backer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/audiopiper/piper/internal/pipererr"
)

func TestComputeLayoutRejectsBadArguments(t *testing.T) {
	cases := []struct {
		name     string
		meta     uint32
		sizes    []uint32
		slots    uint32
	}{
		{"too few slots", 8, []uint32{4}, 1},
		{"no components", 8, nil, 4},
		{"too many components", 8, make([]uint32, MaxComponents+1), 4},
		{"zero metadata", 0, []uint32{4}, 4},
		{"zero component size", 8, []uint32{4, 0}, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := computeLayout(tc.meta, tc.sizes, tc.slots, 4096)
			require.ErrorIs(t, err, pipererr.ErrInvalidArgument)
		})
	}
}

func TestComputeLayoutPageAligned(t *testing.T) {
	l, err := computeLayout(20, []uint32{64, 4}, 8, 4096)
	require.NoError(t, err)

	require.Zero(t, l.MetadataOffset()%4096)
	for i := uint32(0); i < l.ComponentCount(); i++ {
		require.Zero(t, l.ComponentAreaOffset(i)%4096, "component %d area not page aligned", i)
	}
	require.Zero(t, l.TotalSize()%4096)

	// Component areas must not overlap and must be big enough for all slots.
	require.GreaterOrEqual(t, l.ComponentAreaOffset(1), l.ComponentAreaOffset(0)+int64(l.SlotCount())*int64(l.ComponentSize(0)))
	require.GreaterOrEqual(t, l.TotalSize(), l.ComponentAreaOffset(1)+int64(l.SlotCount())*int64(l.ComponentSize(1)))
}

func TestComponentOffsetWrapsBySlot(t *testing.T) {
	l, err := computeLayout(20, []uint32{64}, 4, 4096)
	require.NoError(t, err)

	base := l.ComponentOffset(0, 0)
	require.Equal(t, base, l.ComponentOffset(4, 0), "slot index should wrap modulo slot count")
	require.Equal(t, base+64, l.ComponentOffset(1, 0))
}

func TestCreateThenOpenRoundtrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.piper")

	meta := []byte("fake-metadata-blob-contents-1234")
	b, err := Create(path, meta, []uint32{256, 16}, 8, 0o644)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, uint32(8), b.Layout().SlotCount())
	require.Equal(t, uint32(2), b.Layout().ComponentCount())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, b.Layout().TotalSize(), info.Size())

	b2, err := Open(path)
	require.NoError(t, err)
	defer b2.Close()

	require.Equal(t, b.Layout(), b2.Layout())

	got, err := b2.ReadMetadata()
	require.NoError(t, err)
	require.Equal(t, meta, got)
}

func TestCreateRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.piper")

	_, err := Create(path, []byte("m"), []uint32{8}, 4, 0o644)
	require.NoError(t, err)

	_, err = Create(path, []byte("m"), []uint32{8}, 4, 0o644)
	require.Error(t, err)
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.piper")

	b, err := Create(path, []byte("metadata"), []uint32{128}, 4, 0o644)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	require.NoError(t, os.Truncate(path, 8))

	_, err = Open(path)
	require.ErrorIs(t, err, pipererr.ErrInvalidLayout)
}

func TestFingerprintStableAcrossCreateOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.piper")

	meta := []byte("same-metadata")
	b, err := Create(path, meta, []uint32{32}, 4, 0o644)
	require.NoError(t, err)
	defer b.Close()

	fp1 := b.Layout().Fingerprint(meta)

	b2, err := Open(path)
	require.NoError(t, err)
	defer b2.Close()

	got, err := b2.ReadMetadata()
	require.NoError(t, err)
	fp2 := b2.Layout().Fingerprint(got)

	require.Equal(t, fp1, fp2)
}
