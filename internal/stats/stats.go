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

package stats

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"

	"github.com/mlnoga/gausstex/internal/qsort"
)

// Default number of samples for mean and standard deviation estimates
const DefaultSamples = 1 << 20

// Basic statistics on a channel
type Stats struct {
	Min     float32 // Minimum
	Max     float32 // Maximum
	Mean    float32 // Mean (average), possibly from a random sample
	Median  float32 // Median, from the same sample as the mean
	StdDev  float32 // Standard deviation, possibly from a random sample
	Samples int     // Number of values mean and standard deviation were taken from
	Len     int     // Number of values
}

// Pretty print basic stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g Median %.6g StdDev %.6g (%d of %d samples)",
		s.Min, s.Max, s.Mean, s.Median, s.StdDev, s.Samples, s.Len)
}

// Calculate basic statistics for a float array. Min and max are exact. Mean and standard deviation
// are estimated from maxSamples random values if the array is larger than that
func NewStats(data []float32, maxSamples int) *Stats {
	return newStats(len(data), maxSamples, func(i int) float64 { return float64(data[i]) })
}

// Calculate basic statistics for a byte array. See NewStats
func NewStatsUint8(data []uint8, maxSamples int) *Stats {
	return newStats(len(data), maxSamples, func(i int) float64 { return float64(data[i]) })
}

func newStats(n, maxSamples int, at func(i int) float64) *Stats {
	s := &Stats{Len: n}
	if n == 0 {
		return s
	}

	min, max := at(0), at(0)
	for i := 1; i < n; i++ {
		v := at(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	s.Min, s.Max = float32(min), float32(max)

	var sample []float64
	if maxSamples <= 0 || n <= maxSamples {
		sample = make([]float64, n)
		for i := range sample {
			sample[i] = at(i)
		}
	} else {
		rng := fastrand.RNG{}
		sample = make([]float64, maxSamples)
		for i := range sample {
			sample[i] = at(int(rng.Uint32n(uint32(n))))
		}
	}
	mean, stdDev := stat.MeanStdDev(sample, nil)
	if len(sample) < 2 {
		stdDev = 0
	}
	s.Mean, s.StdDev, s.Samples = float32(mean), float32(stdDev), len(sample)
	s.Median = float32(qsort.QSelectMedianFloat64(sample))
	return s
}

// Mean color of three channels as hex string, with channel values divided by scale
func MeanColorHex(r, g, b *Stats, scale float32) string {
	c := colorful.Color{
		R: float64(r.Mean / scale),
		G: float64(g.Mean / scale),
		B: float64(b.Mean / scale),
	}
	return c.Clamped().Hex()
}

// Color of the given RGB bytes as hex string
func ColorHex(r, g, b uint8) string {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Hex()
}
