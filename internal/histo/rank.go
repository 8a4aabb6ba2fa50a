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
	"fmt"
	"math"

	"github.com/mlnoga/gausstex/internal/parallel"
)

// Number of distinct 8-bit intensities
const levels = 256

// Largest number of samples per channel. Sample indices are stored as int32
const MaxSamples = math.MaxInt32

// The samples of one channel in ascending order of intensity, and the inverse permutation.
// Equal intensities are ordered by ascending original index, so the order is reproducible.
type Sorted struct {
	Order  []int32 // Original pixel index of the k-th smallest sample
	Values []uint8 // Intensity of the k-th smallest sample, non-decreasing
	Rank   []int32 // Position of original pixel i in the sorted order. Order[Rank[i]]==i
}

// Number of samples
func (s *Sorted) Len() int { return len(s.Values) }

// Sorts the samples of a channel with a stable parallel counting sort.
// Each chunk of the input counts its intensities, an exclusive prefix sum over (intensity, chunk)
// yields each chunk's first destination slot per intensity, and the chunks then scatter into
// disjoint slots. Chunks cover ascending index ranges, which keeps ties in index order.
func SortSamples(values []uint8, maxThreads int) *Sorted {
	n := len(values)
	if n > MaxSamples {
		panic(fmt.Sprintf("histo: %d samples exceed the maximum of %d", n, MaxSamples))
	}
	s := &Sorted{
		Order:  make([]int32, n),
		Values: make([]uint8, n),
		Rank:   make([]int32, n),
	}
	if n == 0 {
		return s
	}

	numChunks, _ := parallel.Chunks(n, maxThreads)
	counts := make([][levels]int, numChunks)
	parallel.ForChunks(n, maxThreads, func(c, lower, upper int) {
		hist := &counts[c]
		for _, v := range values[lower:upper] {
			hist[v]++
		}
	})

	// turn counts into starting offsets, intensity-major then chunk-minor
	offset := 0
	for v := 0; v < levels; v++ {
		for c := 0; c < numChunks; c++ {
			count := counts[c][v]
			counts[c][v] = offset
			offset += count
		}
	}

	parallel.ForChunks(n, maxThreads, func(c, lower, upper int) {
		next := &counts[c]
		for i := lower; i < upper; i++ {
			v := values[i]
			k := next[v]
			next[v]++
			s.Order[k] = int32(i)
			s.Values[k] = v
			s.Rank[i] = int32(k)
		}
	})
	return s
}
