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

// Package preview renders interleaved float RGB data into viewable 8-bit JPEG
// and 16-bit TIFF images.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	"github.com/mlnoga/gausstex/internal/parallel"
)

// Display settings for a preview. Values are mapped linearly from [Min,Max] to [0,1],
// clamped, and raised to the power of 1/Gamma
type Settings struct {
	Min     float32 `json:"min"`
	Max     float32 `json:"max"`
	Gamma   float32 `json:"gamma"`
	Quality int     `json:"quality"` // JPEG only
}

// Settings for forward transform output, which concentrates in [0,1]
var DefaultSettings = Settings{Min: 0, Max: 1, Gamma: 1, Quality: 95}

// Converts interleaved pixel data into a Golang image through the given color setter
func render(width, height int, pix []float32, s Settings, maxThreads int, set func(x, y int, r, g, b float32)) error {
	if len(pix) != 3*width*height {
		return fmt.Errorf("preview: %d samples for %dx%d RGB image", len(pix), width, height)
	}
	if s.Max <= s.Min {
		return fmt.Errorf("preview: invalid range [%g,%g]", s.Min, s.Max)
	}
	if s.Gamma <= 0 {
		s.Gamma = 1
	}
	scale := 1.0 / (s.Max - s.Min)
	gammaInv := float64(1.0 / s.Gamma)
	norm := func(v float32) float32 {
		v = (v - s.Min) * scale
		// replace NaNs with zeros for export, else output breaks
		if math.IsNaN(float64(v)) || v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		if gammaInv != 1.0 {
			v = float32(math.Pow(float64(v), gammaInv))
		}
		return v
	}
	parallel.For(width*height, maxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			set(i%width, i/width, norm(pix[3*i]), norm(pix[3*i+1]), norm(pix[3*i+2]))
		}
	})
	return nil
}

func WriteJPG(writer io.Writer, width, height int, pix []float32, s Settings, maxThreads int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	err := render(width, height, pix, s, maxThreads, func(x, y int, r, g, b float32) {
		img.SetRGBA(x, y, color.RGBA{uint8(r * 255), uint8(g * 255), uint8(b * 255), 255})
	})
	if err != nil {
		return err
	}
	quality := s.Quality
	if quality <= 0 {
		quality = DefaultSettings.Quality
	}
	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}
