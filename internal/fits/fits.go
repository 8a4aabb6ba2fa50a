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

package fits

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mlnoga/gausstex/internal/parallel"
)

// A FITS image with 32-bit floating point data.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	FileName string // Original file name, if any, for log output.

	Header Header  // The header with all keys, values, comments, history entries etc.
	Bitpix int32   // Bits per pixel value from the header. Positive values are integral, negative floating.
	Bzero  float32 // Zero offset. True pixel value is Bzero + Bscale * Data[i].
	Bscale float32 // Value scaler. True pixel value is Bzero + Bscale * Data[i].
	Naxisn []int32 // Axis dimensions. Most quickly varying dimension first (i.e. X,Y)
	Pixels int     // Number of pixels in the image. Product of Naxisn[]

	Data []float32 // The image data, one plane per channel
}

var ErrEmptyImage = errors.New("fits: cannot write image with zero pixels")

// Creates a FITS image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bitpix: -32,
		Bscale: 1,
	}
}

// Creates a FITS image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := 1
	for _, naxis := range naxisn {
		numPixels *= int(naxis)
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	img := NewImage()
	img.Naxisn = append([]int32(nil), naxisn...) // clone slice
	img.Pixels = numPixels
	img.Data = data
	return img
}

// Creates a three-plane FITS image from interleaved RGB data, as produced by the forward transform
func NewRGBFromInterleaved(width, height int, pix []float32, maxThreads int) *Image {
	img := NewImageFromNaxisn([]int32{int32(width), int32(height), 3}, nil)
	n := width * height
	r, g, b := img.Data[:n], img.Data[n:2*n], img.Data[2*n:]
	parallel.For(n, maxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			r[i], g[i], b[i] = pix[3*i], pix[3*i+1], pix[3*i+2]
		}
	})
	return img
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float32
	Strings  map[string]string
	Comments []string
	History  []string
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int32),
		Floats:   make(map[string]float32),
		Strings:  make(map[string]string),
		Comments: make([]string, 0),
		History:  make([]string, 0),
	}
}

const fitsBlockSize int = 2880   // Block size of FITS header and data units
const HeaderLineSize int = 80    // Line size of a FITS header

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}
