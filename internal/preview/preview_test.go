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

package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"math"
	"testing"

	"golang.org/x/image/tiff"
)

func TestWriteTIFF16(t *testing.T) {
	// NaN and out of range values clamp
	pix := []float32{0.5, 0, 1, -3, float32(math.NaN()), 7}
	var buf bytes.Buffer
	if err := WriteTIFF16(&buf, 2, 1, pix, DefaultSettings, 1); err != nil {
		t.Fatal(err)
	}
	img, err := tiff.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	rgba, ok := img.(*image.RGBA64)
	if !ok {
		t.Fatalf("decoded %T", img)
	}
	want := [][3]uint16{{32767, 0, 65535}, {0, 0, 65535}}
	for x, w := range want {
		c := rgba.RGBA64At(x, 0)
		if c.R != w[0] || c.G != w[1] || c.B != w[2] {
			t.Errorf("pixel %d is %v; want %v", x, c, w)
		}
	}
}

func TestWriteJPG(t *testing.T) {
	width, height := 16, 8
	pix := make([]float32, 3*width*height)
	for i := range pix {
		pix[i] = 0.5
	}
	var buf bytes.Buffer
	if err := WriteJPG(&buf, width, height, pix, Settings{Min: 0, Max: 1, Gamma: 2.2}, 2); err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, width, height) {
		t.Errorf("bounds %v", img.Bounds())
	}
	// 0.5^(1/2.2) is about 0.73
	r, _, _, _ := img.At(3, 3).RGBA()
	if got := float64(r) / 65535; math.Abs(got-0.73) > 0.03 {
		t.Errorf("red %f; want ~0.73", got)
	}
}

func TestInvalidInput(t *testing.T) {
	if err := WriteJPG(io.Discard, 2, 2, make([]float32, 5), DefaultSettings, 1); err == nil {
		t.Errorf("expected error for short pixel data")
	}
	if err := WriteTIFF16(io.Discard, 1, 1, make([]float32, 3), Settings{Min: 1, Max: 1}, 1); err == nil {
		t.Errorf("expected error for empty range")
	}
}
