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


package qsort

import (
	"testing"

	"github.com/valyala/fastrand"
)

// Random permutation of 1..n
func permutation(rng *fastrand.RNG, n int) []float64 {
	arr := make([]float64, n)
	for j := range arr {
		arr[j] = float64(j + 1)
	}
	for j := range arr {
		k := rng.Uint32n(uint32(n))
		arr[j], arr[k] = arr[k], arr[j]
	}
	return arr
}

func TestMedian(t *testing.T) {
	rng := fastrand.RNG{}
	for i := 1; i < 1000; i++ {
		arr := permutation(&rng, i)

		var expect float64
		if (i & 1) != 0 {
			expect = float64((i + 1) / 2)
		} else {
			expect = 0.5 * (float64(i/2) + float64(i/2+1))
		}

		res := QSelectMedianFloat64(arr)
		if res != expect {
			t.Errorf("median(1..%d) got %f expect %f", i, res, expect)
		}
	}
}

func TestSelect(t *testing.T) {
	rng := fastrand.RNG{}
	for _, n := range []int{1, 2, 3, 10, 257} {
		for k := 1; k <= n; k++ {
			arr := permutation(&rng, n)
			if got := QSelectFloat64(arr, k); got != float64(k) {
				t.Errorf("select(%d of 1..%d) got %f", k, n, got)
			}
		}
	}
}

func TestSelectDuplicates(t *testing.T) {
	arr := []float64{3, 1, 3, 3, 2, 3, 1}
	if got := QSelectMedianFloat64(arr); got != 3 {
		t.Errorf("median got %f expect 3", got)
	}
	if got := QSelectMedianFloat64(nil); got != 0 {
		t.Errorf("median of empty got %f", got)
	}
}
