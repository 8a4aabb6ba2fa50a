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

	"github.com/mlnoga/gausstex/internal/parallel"
)

// Element types of the interleaved output buffers
type Sample interface {
	~float32 | ~uint8
}

// Interleaves three equally long channels into one buffer r0,g0,b0,r1,g1,b1,...
func Interleave[T Sample](r, g, b []T, maxThreads int) []T {
	n := len(r)
	if len(g) != n || len(b) != n {
		panic(fmt.Sprintf("histo: interleaving channels of unequal length %d, %d, %d", len(r), len(g), len(b)))
	}
	out := make([]T, 3*n)
	parallel.For(n, maxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			out[3*i+0] = r[i]
			out[3*i+1] = g[i]
			out[3*i+2] = b[i]
		}
	})
	return out
}

// Splits an interleaved buffer back into three channels. Inverse of Interleave
func Deinterleave[T Sample](pix []T, maxThreads int) (r, g, b []T) {
	n := len(pix) / 3
	r, g, b = make([]T, n), make([]T, n), make([]T, n)
	parallel.For(n, maxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			r[i], g[i], b[i] = pix[3*i+0], pix[3*i+1], pix[3*i+2]
		}
	})
	return r, g, b
}
