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
	"fmt"

	"github.com/audiopiper/piper/wire"
)

// Report is the operator-facing summary of a backing file, combining
// its layout with its decoded application metadata; `piper info`
// formats this as text or YAML.
type Report struct {
	Path           string       `json:"path"`
	SlotCount      uint32       `json:"slot_count"`
	ComponentCount uint32       `json:"component_count"`
	TotalSize      int64        `json:"total_size"`
	Fingerprint    uint64       `json:"fingerprint"`
	Metadata       wire.Metadata `json:"metadata"`
}

// BuildReport reads and decodes b's application metadata and assembles
// a Report.
func (b *Backer) BuildReport() (Report, error) {
	raw, err := b.ReadMetadata()
	if err != nil {
		return Report{}, err
	}
	meta, err := wire.Decode(raw)
	if err != nil {
		return Report{}, fmt.Errorf("backer: decode metadata: %w", err)
	}
	return Report{
		Path:           b.path,
		SlotCount:      b.layout.SlotCount(),
		ComponentCount: b.layout.ComponentCount(),
		TotalSize:      b.layout.TotalSize(),
		Fingerprint:    b.layout.Fingerprint(raw),
		Metadata:       meta,
	}, nil
}
