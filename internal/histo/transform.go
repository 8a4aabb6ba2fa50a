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

// Package histo implements the histogram transform behind Gaussianized texture synthesis.
// Each color channel is ranked, the ranks are pushed through the quantile function of
// N(0.5, 1/36), and an inverse lookup table is derived from the same ranking so that a
// renderer can undo the transform without the original texture.
package histo

import (
	"github.com/mlnoga/gausstex/internal/parallel"
)

// Settings for a transform
type Options struct {
	LUTSize    int `json:"lutSize"`    // Number of inverse LUT entries per channel. 0 = image width
	MaxThreads int `json:"maxThreads"` // Parallelism limit. 0 = GOMAXPROCS
}

// Output of a transform
type Result struct {
	Width   int
	Height  int
	LUTSize int       // Number of entries per channel in LUT
	Image   []float32 // Forward-transformed image, interleaved RGB, 3*Width*Height values
	LUT     []uint8   // Inverse lookup table, interleaved RGB, 3*LUTSize values

	Forward [3][]float32 // Per-channel forward values, for statistics
	Inverse [3][]uint8   // Per-channel inverse tables, for statistics
}

// Per-channel part of a transform
type channelResult struct {
	forward []float32
	inverse []uint8
}

// Transforms one channel: sort once, then derive the forward array and the inverse LUT
// from the shared sorted samples
func transformChannel(values []uint8, lutSize, maxThreads int) channelResult {
	s := SortSamples(values, maxThreads)
	var res channelResult
	parallel.Join(
		func() { res.forward = Forward(s, maxThreads) },
		func() { res.inverse = InverseLUT(s, lutSize, maxThreads) },
	)
	return res
}

// Gaussianizes all three channels and builds their inverse lookup tables. Channels are processed
// concurrently, then both interleaved output buffers are assembled concurrently. Empty input
// yields empty outputs.
func Transform(ch *Channels, opts Options) *Result {
	lutSize := opts.LUTSize
	if lutSize <= 0 {
		lutSize = ch.Width
	}
	if ch.Len() == 0 {
		lutSize = 0
	}

	var chans [3]channelResult
	parallel.Join(
		func() { chans[0] = transformChannel(ch.R, lutSize, opts.MaxThreads) },
		func() { chans[1] = transformChannel(ch.G, lutSize, opts.MaxThreads) },
		func() { chans[2] = transformChannel(ch.B, lutSize, opts.MaxThreads) },
	)

	res := &Result{Width: ch.Width, Height: ch.Height, LUTSize: lutSize}
	for i := range chans {
		res.Forward[i], res.Inverse[i] = chans[i].forward, chans[i].inverse
	}
	parallel.Join(
		func() { res.Image = Interleave(chans[0].forward, chans[1].forward, chans[2].forward, opts.MaxThreads) },
		func() { res.LUT = Interleave(chans[0].inverse, chans[1].inverse, chans[2].inverse, opts.MaxThreads) },
	)
	return res
}
