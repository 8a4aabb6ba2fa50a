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
	"image"
	"image/color"

	"github.com/mlnoga/gausstex/internal/parallel"
)

// Three independent 8-bit intensity planes of an image, in row-major order
type Channels struct {
	Width  int
	Height int
	R      []uint8
	G      []uint8
	B      []uint8
}

// Accessor for the RGB intensities of the pixel at column x, row y
type PixelFunc func(x, y int) (r, g, b uint8)

// Creates zeroed channels of the given dimensions
func NewChannels(width, height int) *Channels {
	n := width * height
	if width <= 0 || height <= 0 {
		width, height, n = max(width, 0), max(height, 0), 0
	}
	return &Channels{
		Width:  width,
		Height: height,
		R:      make([]uint8, n),
		G:      make([]uint8, n),
		B:      make([]uint8, n),
	}
}

// Number of samples per channel
func (ch *Channels) Len() int { return len(ch.R) }

// Returns the channel with the given index 0=R, 1=G, 2=B
func (ch *Channels) Channel(id int) []uint8 {
	switch id {
	case 0:
		return ch.R
	case 1:
		return ch.G
	default:
		return ch.B
	}
}

// Splits an image given by its dimensions and a pixel accessor into three channels.
// Pixels are processed in parallel, so the accessor must be safe for concurrent reads.
func Split(width, height int, at PixelFunc, maxThreads int) *Channels {
	ch := NewChannels(width, height)
	parallel.For(ch.Len(), maxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			y := i / ch.Width
			x := i - y*ch.Width
			ch.R[i], ch.G[i], ch.B[i] = at(x, y)
		}
	})
	return ch
}

// Splits a decoded image into three channels of non-premultiplied 8-bit intensities.
// Alpha is ignored.
func SplitImage(img image.Image, maxThreads int) *Channels {
	bounds := img.Bounds()
	var at PixelFunc
	switch m := img.(type) {
	case *image.NRGBA:
		at = func(x, y int) (r, g, b uint8) {
			p := m.Pix[m.PixOffset(x+m.Rect.Min.X, y+m.Rect.Min.Y):]
			return p[0], p[1], p[2]
		}
	case *image.RGBA:
		at = func(x, y int) (r, g, b uint8) {
			p := m.Pix[m.PixOffset(x+m.Rect.Min.X, y+m.Rect.Min.Y):]
			if p[3] == 0xff {
				return p[0], p[1], p[2]
			}
			c := color.NRGBAModel.Convert(color.RGBA{p[0], p[1], p[2], p[3]}).(color.NRGBA)
			return c.R, c.G, c.B
		}
	case *image.Gray:
		at = func(x, y int) (r, g, b uint8) {
			v := m.Pix[m.PixOffset(x+m.Rect.Min.X, y+m.Rect.Min.Y)]
			return v, v, v
		}
	default:
		at = func(x, y int) (r, g, b uint8) {
			c := color.NRGBAModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.NRGBA)
			return c.R, c.G, c.B
		}
	}
	return Split(bounds.Dx(), bounds.Dy(), at, maxThreads)
}
