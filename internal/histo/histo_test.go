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
	"testing"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"

	"github.com/mlnoga/gausstex/internal/gauss"
)

// Random intensities drawn from a triangular-ish distribution with many ties
func randomValues(n int, rng *fastrand.RNG) []uint8 {
	values := make([]uint8, n)
	for i := range values {
		values[i] = uint8((rng.Uint32n(256) + rng.Uint32n(256)) / 2)
	}
	return values
}

func TestSortSamplesIsStableBijection(t *testing.T) {
	rng := fastrand.RNG{}
	for _, n := range []int{1, 2, 7, 1000, 50000} {
		for _, threads := range []int{1, 3, 8} {
			values := randomValues(n, &rng)
			s := SortSamples(values, threads)

			seen := make([]bool, n)
			for i := 0; i < n; i++ {
				r := s.Rank[i]
				if r < 0 || int(r) >= n || seen[r] {
					t.Fatalf("n=%d threads=%d: rank %d of pixel %d is out of range or duplicate", n, threads, r, i)
				}
				seen[r] = true
				if s.Order[r] != int32(i) {
					t.Fatalf("n=%d threads=%d: Order[Rank[%d]]=%d", n, threads, i, s.Order[r])
				}
				if s.Values[r] != values[i] {
					t.Fatalf("n=%d threads=%d: Values[Rank[%d]]=%d; want %d", n, threads, i, s.Values[r], values[i])
				}
			}
			for k := 1; k < n; k++ {
				if s.Values[k-1] > s.Values[k] {
					t.Fatalf("n=%d threads=%d: values not sorted at %d", n, threads, k)
				}
				if s.Values[k-1] == s.Values[k] && s.Order[k-1] > s.Order[k] {
					t.Fatalf("n=%d threads=%d: tie at %d not in index order: %d > %d", n, threads, k, s.Order[k-1], s.Order[k])
				}
			}
		}
	}
}

func TestSortSamplesIndependentOfThreads(t *testing.T) {
	rng := fastrand.RNG{}
	values := randomValues(100003, &rng)
	ref := SortSamples(values, 1)
	for _, threads := range []int{2, 5, 16} {
		s := SortSamples(values, threads)
		for i := range ref.Rank {
			if s.Rank[i] != ref.Rank[i] {
				t.Fatalf("threads=%d: rank of pixel %d is %d; single-threaded %d", threads, i, s.Rank[i], ref.Rank[i])
			}
		}
	}
}

func TestForwardSorted2x2(t *testing.T) {
	s := SortSamples([]uint8{10, 20, 30, 40}, 0)
	for i, r := range s.Rank {
		if int(r) != i {
			t.Errorf("rank[%d]=%d; want identity", i, r)
		}
	}
	// 0.5 + z(u)/6 for u = 0.125, 0.375, 0.625, 0.875
	want := []float64{0.308284, 0.446895, 0.553105, 0.691716}
	got := Forward(s, 0)
	for i := range want {
		if math.Abs(float64(got[i])-want[i]) > 1e-3 {
			t.Errorf("forward[%d]=%.6f; want %.6f", i, got[i], want[i])
		}
	}
}

func TestForwardSingleSample(t *testing.T) {
	got := Forward(SortSamples([]uint8{123}, 0), 0)
	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("forward of single sample is %v; want [0.5]", got)
	}
}

func TestForwardMonotonic(t *testing.T) {
	rng := fastrand.RNG{}
	values := randomValues(20000, &rng)
	fwd := Forward(SortSamples(values, 4), 4)
	for j := 0; j < 5000; j++ {
		a, b := int(rng.Uint32n(uint32(len(values)))), int(rng.Uint32n(uint32(len(values))))
		if a > b {
			a, b = b, a
		}
		switch {
		case values[a] < values[b] && !(fwd[a] < fwd[b]):
			t.Fatalf("intensity %d<%d but forward %f>=%f", values[a], values[b], fwd[a], fwd[b])
		case values[a] > values[b] && !(fwd[a] > fwd[b]):
			t.Fatalf("intensity %d>%d but forward %f<=%f", values[a], values[b], fwd[a], fwd[b])
		case a < b && values[a] == values[b] && !(fwd[a] < fwd[b]):
			t.Fatalf("equal intensity %d at %d<%d but forward %f>=%f", values[a], a, b, fwd[a], fwd[b])
		}
	}
}

func TestForwardIsGaussian(t *testing.T) {
	rng := fastrand.RNG{}
	values := make([]uint8, 1<<16)
	for i := range values {
		values[i] = uint8(rng.Uint32n(32)) // heavily skewed towards the dark end
	}
	fwd := Forward(SortSamples(values, 0), 0)
	data := make([]float64, len(fwd))
	for i, f := range fwd {
		data[i] = float64(f)
	}
	mean, stdDev := stat.MeanStdDev(data, nil)
	if math.Abs(mean-gauss.Mu) > 1e-4 {
		t.Errorf("mean %f; want %f", mean, gauss.Mu)
	}
	if math.Abs(stdDev-gauss.Sigma) > 2e-3 {
		t.Errorf("standard deviation %f; want %f", stdDev, gauss.Sigma)
	}
}

func TestInverseLUT2x2(t *testing.T) {
	s := SortSamples([]uint8{10, 20, 30, 40}, 0)
	got := InverseLUT(s, 4, 0)
	want := []uint8{10, 10, 40, 40}
	for k := range want {
		if got[k] != want[k] {
			t.Errorf("lut[%d]=%d; want %d", k, got[k], want[k])
		}
	}
}

func TestInverseLUTMonotonic(t *testing.T) {
	rng := fastrand.RNG{}
	s := SortSamples(randomValues(30000, &rng), 3)
	for _, size := range []int{1, 2, 17, 256, 4096, 10000} {
		lut := InverseLUT(s, size, 3)
		if len(lut) != size {
			t.Fatalf("size %d: got %d entries", size, len(lut))
		}
		for k := 1; k < size; k++ {
			if lut[k-1] > lut[k] {
				t.Fatalf("size %d: lut[%d]=%d > lut[%d]=%d", size, k-1, lut[k-1], k, lut[k])
			}
		}
	}
}

func TestInverseLUTSingleSample(t *testing.T) {
	lut := InverseLUT(SortSamples([]uint8{77}, 0), 9, 0)
	for k, v := range lut {
		if v != 77 {
			t.Errorf("lut[%d]=%d; want 77", k, v)
		}
	}
}

func TestLUTIndexClamped(t *testing.T) {
	for _, n := range []int{1, 2, 3, 1000, 1 << 24} {
		for _, size := range []int{1, 2, 1000, 1 << 20} {
			for _, k := range []int{0, size / 2, size - 1} {
				if idx := lutIndex(k, size, n); idx < 0 || idx >= n {
					t.Errorf("lutIndex(%d,%d,%d)=%d out of range", k, size, n, idx)
				}
			}
		}
	}
}

func TestRoundTripReconstructsIntensities(t *testing.T) {
	rng := fastrand.RNG{}
	width, height := 256, 64
	values := make([]uint8, width*height)
	for i := range values {
		values[i] = uint8(rng.Uint32n(256))
	}
	s := SortSamples(values, 0)
	fwd := Forward(s, 0)
	lut := InverseLUT(s, width, 0)

	sumAbs, maxAbs := 0.0, 0.0
	for i, f := range fwd {
		d := math.Abs(float64(Lookup(lut, f)) - float64(values[i]))
		sumAbs += d
		maxAbs = math.Max(maxAbs, d)
	}
	if mean := sumAbs / float64(len(fwd)); mean > 2 {
		t.Errorf("mean reconstruction error %f; want <=2", mean)
	}
	if maxAbs > 8 {
		t.Errorf("max reconstruction error %f; want <=8", maxAbs)
	}
}

func TestEmpty(t *testing.T) {
	s := SortSamples(nil, 0)
	if len(Forward(s, 0)) != 0 || len(InverseLUT(s, 16, 0)) != 0 {
		t.Errorf("empty input produced non-empty output")
	}
	res := Transform(NewChannels(0, 0), Options{})
	if len(res.Image) != 0 || len(res.LUT) != 0 || res.LUTSize != 0 {
		t.Errorf("empty image produced %d image and %d LUT values", len(res.Image), len(res.LUT))
	}
	res = Transform(NewChannels(5, 0), Options{})
	if len(res.Image) != 0 || len(res.LUT) != 0 {
		t.Errorf("zero height image produced %d image and %d LUT values", len(res.Image), len(res.LUT))
	}
}
