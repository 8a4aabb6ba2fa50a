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
	"github.com/mlnoga/gausstex/internal/gauss"
	"github.com/mlnoga/gausstex/internal/parallel"
)

// Maps every sample to the normal quantile of its normalized rank. The result is indexed by
// original pixel position, strictly increasing in rank, and distributed approximately as
// N(gauss.Mu, gauss.Sigma²).
func Forward(s *Sorted, maxThreads int) []float32 {
	n := s.Len()
	out := make([]float32, n)
	parallel.For(n, maxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			u := gauss.NormalizedRank(int(s.Rank[i]), n)
			out[i] = float32(gauss.Quantile(u, gauss.Mu, gauss.Sigma))
		}
	})
	return out
}
