// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package histo

import (
	"math"

	"github.com/mlnoga/gausstex/internal/gauss"
	"github.com/mlnoga/gausstex/internal/parallel"
)

// Builds a lookup table with the given number of entries which maps a forward-transformed value
// back to an original intensity. Entry k covers the grid cell centered at (k+0.5)/size: the normal
// CDF turns it into a probability u, and u*N indexes the sorted samples. The table is
// non-decreasing in k. Without samples there is nothing to reconstruct, and the table is empty.
func InverseLUT(s *Sorted, size, maxThreads int) []uint8 {
	n := s.Len()
	if n == 0 || size <= 0 {
		return []uint8{}
	}
	lut := make([]uint8, size)
	parallel.For(size, maxThreads, func(lower, upper int) {
		for k := lower; k < upper; k++ {
			lut[k] = s.Values[lutIndex(k, size, n)]
		}
	})
	return lut
}

// Index into the n sorted samples for LUT entry k of size
func lutIndex(k, size, n int) int {
	g := (float64(k) + 0.5) / float64(size)
	u := gauss.CDF(g, gauss.Mu, gauss.Sigma)
	index := int(math.Floor(u * float64(n)))
	// u*n may round up to n
	if index >= n {
		index = n - 1
	} else if index < 0 {
		index = 0
	}
	return index
}

// Reconstructs the original intensity for a forward-transformed value with the given table,
// the way a renderer samples the table: the value is taken as a position on the table's
// uniform grid, and positions outside [0,1) are clamped to the first or last entry.
func Lookup(lut []uint8, value float32) uint8 {
	k := int(math.Floor(float64(value) * float64(len(lut))))
	if k < 0 {
		k = 0
	} else if k >= len(lut) {
		k = len(lut) - 1
	}
	return lut[k]
}
