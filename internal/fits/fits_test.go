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
	"bytes"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func testImage() *Image {
	width, height := 5, 4
	pix := make([]float32, 3*width*height)
	for i := range pix {
		pix[i] = float32(i) / 7
	}
	img := NewRGBFromInterleaved(width, height, pix, 2)
	img.Header.Floats["GAUSSMU"] = 0.5
	img.Header.Floats["GAUSSSIG"] = 1.0 / 6
	img.Header.Strings["ORIGFILE"] = "brick.png"
	img.Header.History = append(img.Header.History, "gaussianized texture")
	return img
}

func TestNewRGBFromInterleaved(t *testing.T) {
	pix := []float32{1, 2, 3, 4, 5, 6}
	img := NewRGBFromInterleaved(2, 1, pix, 1)
	want := []float32{1, 4, 2, 5, 3, 6}
	for i := range want {
		if img.Data[i] != want[i] {
			t.Fatalf("planar data %v; want %v", img.Data, want)
		}
	}
	if img.DimensionsToString() != "2x1x3" || img.Pixels != 6 {
		t.Errorf("got %s with %d pixels", img.DimensionsToString(), img.Pixels)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	img := testImage()
	img.Data[3] = float32(math.NaN())

	var buf bytes.Buffer
	if err := img.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len()%fitsBlockSize != 0 {
		t.Errorf("file size %d is not a multiple of %d", buf.Len(), fitsBlockSize)
	}

	read := NewImage()
	if err := read.Read(bytes.NewReader(buf.Bytes()), io.Discard); err != nil {
		t.Fatal(err)
	}
	if read.DimensionsToString() != "5x4x3" || read.Bitpix != -32 {
		t.Errorf("got %s bitpix %d", read.DimensionsToString(), read.Bitpix)
	}
	for i, v := range read.Data {
		want := img.Data[i]
		if i == 3 {
			want = 0
		}
		if v != want {
			t.Fatalf("data[%d]=%f; want %f", i, v, want)
		}
	}
	if read.Header.Floats["GAUSSMU"] != 0.5 || read.Header.Floats["GAUSSSIG"] != float32(1.0/6) {
		t.Errorf("floats %v", read.Header.Floats)
	}
	if read.Header.Strings["ORIGFILE"] != "brick.png" {
		t.Errorf("strings %v", read.Header.Strings)
	}
	if len(read.Header.History) != 1 || read.Header.History[0] != "gaussianized texture" {
		t.Errorf("history %q", read.Header.History)
	}
}

func TestWriteFileGzip(t *testing.T) {
	img := testImage()
	for _, name := range []string{"out.fits", "out.fits.gz"} {
		fileName := filepath.Join(t.TempDir(), name)
		if err := img.WriteFile(fileName); err != nil {
			t.Fatal(err)
		}
		read, err := NewImageFromFile(fileName, io.Discard)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(read.Data) != len(img.Data) || read.Data[59] != img.Data[59] {
			t.Errorf("%s: data mismatch", name)
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	img := NewImageFromNaxisn([]int32{0, 0, 3}, nil)
	if err := img.Write(io.Discard); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("got %v; want ErrEmptyImage", err)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if err := NewImage().Read(bytes.NewReader(make([]byte, 100)), io.Discard); err == nil {
		t.Errorf("expected error for truncated header")
	}
	if err := NewImage().Read(strings.NewReader("END"+strings.Repeat(" ", fitsBlockSize-3)), io.Discard); err == nil {
		t.Errorf("expected error for missing SIMPLE")
	}
}

// Pads a header card to 80 characters
func card(s string) string {
	return s + strings.Repeat(" ", HeaderLineSize-len(s))
}

func TestReadCard(t *testing.T) {
	h := NewHeader()
	cards := []string{
		"SIMPLE  =                    T / conforms to FITS standard",
		"NAXIS1  =                  512",
		"EXPTIME =            1.5D+02 / exposure in seconds",
		"GAIN    =                 -0.5",
		"OBJECT  = 'it''s a brick    ' / texture name",
		"HISTORY   first step",
		"COMMENT written by a test",
		"",
		"GARBAGE no value indicator",
	}
	for _, c := range cards {
		if h.readCard(card(c), io.Discard) {
			t.Fatalf("unexpected END at %q", c)
		}
	}
	if !h.readCard(card("END"), io.Discard) {
		t.Errorf("END card not recognized")
	}

	if !h.Bools["SIMPLE"] || h.Ints["NAXIS1"] != 512 {
		t.Errorf("bools %v ints %v", h.Bools, h.Ints)
	}
	if h.Floats["EXPTIME"] != 150 || h.Floats["GAIN"] != -0.5 {
		t.Errorf("floats %v", h.Floats)
	}
	if h.Strings["OBJECT"] != "it's a brick" {
		t.Errorf("strings %q", h.Strings)
	}
	if len(h.History) != 1 || h.History[0] != "first step" || len(h.Comments) != 1 || h.Comments[0] != "written by a test" {
		t.Errorf("history %q comments %q", h.History, h.Comments)
	}
	if _, ok := h.Ints["GARBAGE"]; ok {
		t.Errorf("parsed a card without value indicator")
	}
}
