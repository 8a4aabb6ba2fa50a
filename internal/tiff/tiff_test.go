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

package tiff

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
	xtiff "golang.org/x/image/tiff"
)

var allCompressions = []Compression{None, PackBits, Deflate}

func TestParseCompression(t *testing.T) {
	for _, c := range allCompressions {
		parsed, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	c, err := ParseCompression("ZIP")
	require.NoError(t, err)
	assert.Equal(t, Deflate, c)

	_, err = ParseCompression("lzw")
	assert.Error(t, err)
}

func unpackBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		n := int(int8(src[i]))
		i++
		if n >= 0 {
			out = append(out, src[i:i+n+1]...)
			i += n + 1
		} else if n != -128 {
			for k := 0; k < 1-n; k++ {
				out = append(out, src[i])
			}
			i++
		}
	}
	return out
}

func TestPackBitsRoundTrip(t *testing.T) {
	rng := fastrand.RNG{}
	long := bytes.Repeat([]byte{7}, 300)
	noisy := make([]byte, 1000)
	for i := range noisy {
		noisy[i] = byte(rng.Uint32n(4))
	}
	cases := [][]byte{
		{},
		{1},
		{1, 1},
		{1, 2, 3, 4},
		{1, 2, 2, 3, 3, 3, 4},
		long,
		noisy,
		append(append([]byte{}, long...), noisy...),
	}
	for _, data := range cases {
		packed := appendPackBits(nil, data)
		assert.Equal(t, len(data), len(unpackBits(packed)))
		if len(data) > 0 {
			assert.Equal(t, data, unpackBits(packed))
		}
	}
	assert.Len(t, appendPackBits(nil, long), 6, "300 equal bytes pack into 128+128+44 runs")
}

func randomRGB8(width, height int) []uint8 {
	rng := fastrand.RNG{}
	pix := make([]uint8, 3*width*height)
	for i := range pix {
		// short runs so every compression has something to do
		pix[i] = uint8(rng.Uint32n(256) / 64 * 64)
	}
	return pix
}

func TestEncodeRGB8DecodesWithXImage(t *testing.T) {
	// 300 rows of 300 pixels span several strips
	for _, size := range [][2]int{{1, 1}, {7, 3}, {300, 300}} {
		width, height := size[0], size[1]
		pix := randomRGB8(width, height)
		for _, c := range allCompressions {
			var buf bytes.Buffer
			require.NoError(t, EncodeRGB8(&buf, width, height, pix, c, 4))

			img, err := xtiff.Decode(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err, "compression %v size %v", c, size)
			require.Equal(t, image.Rect(0, 0, width, height), img.Bounds())
			rgba, ok := img.(*image.RGBA)
			require.True(t, ok, "decoded %T", img)
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					i := 3 * (y*width + x)
					o := rgba.PixOffset(x, y)
					if !assert.Equal(t, pix[i:i+3], rgba.Pix[o:o+3], "compression %v pixel %d,%d", c, x, y) {
						return
					}
				}
			}
		}
	}
}

// Minimal reader for the files written above, enough to check float output
type decoded struct {
	width, height int
	tags          map[uint16][]uint32
	data          []byte
}

func readTIFF(t *testing.T, file []byte) *decoded {
	t.Helper()
	require.Equal(t, "II", string(file[:2]))
	require.Equal(t, uint16(42), binary.LittleEndian.Uint16(file[2:]))
	ifd := binary.LittleEndian.Uint32(file[4:])
	n := int(binary.LittleEndian.Uint16(file[ifd:]))
	d := &decoded{tags: map[uint16][]uint32{}}
	prevTag := uint16(0)
	for i := 0; i < n; i++ {
		e := file[int(ifd)+2+12*i:]
		tag := binary.LittleEndian.Uint16(e)
		require.Greater(t, tag, prevTag, "tags must be sorted")
		prevTag = tag
		dt := binary.LittleEndian.Uint16(e[2:])
		count := int(binary.LittleEndian.Uint32(e[4:]))
		size := map[uint16]int{dtShort: 2, dtLong: 4, dtRational: 8}[dt] * count
		src := e[8:12]
		if size > 4 {
			off := binary.LittleEndian.Uint32(e[8:])
			src = file[off : int(off)+size]
		}
		var vals []uint32
		switch dt {
		case dtShort:
			for k := 0; k < count; k++ {
				vals = append(vals, uint32(binary.LittleEndian.Uint16(src[2*k:])))
			}
		case dtLong:
			for k := 0; k < count; k++ {
				vals = append(vals, binary.LittleEndian.Uint32(src[4*k:]))
			}
		case dtRational:
			for k := 0; k < 2*count; k++ {
				vals = append(vals, binary.LittleEndian.Uint32(src[4*k:]))
			}
		}
		d.tags[tag] = vals
	}
	require.Zero(t, binary.LittleEndian.Uint32(file[int(ifd)+2+12*n:]), "single IFD")
	d.width, d.height = int(d.tags[tImageWidth][0]), int(d.tags[tImageLength][0])

	offsets, counts := d.tags[tStripOffsets], d.tags[tStripByteCounts]
	require.Equal(t, len(offsets), len(counts))
	for s := range offsets {
		strip := file[offsets[s] : offsets[s]+counts[s]]
		switch d.tags[tCompression][0] {
		case 1:
			d.data = append(d.data, strip...)
		case 32773:
			d.data = append(d.data, unpackBits(strip)...)
		case 8:
			zr, err := zlib.NewReader(bytes.NewReader(strip))
			require.NoError(t, err)
			raw, err := io.ReadAll(zr)
			require.NoError(t, err)
			d.data = append(d.data, raw...)
		default:
			t.Fatalf("compression %d", d.tags[tCompression][0])
		}
	}
	return d
}

func TestEncodeRGB32Float(t *testing.T) {
	width, height := 129, 200 // 1548 bytes per row, 42 rows per strip
	rng := fastrand.RNG{}
	pix := make([]float32, 3*width*height)
	for i := range pix {
		pix[i] = float32(rng.Uint32n(1000)) / 999
	}
	pix[0], pix[1] = -0.25, 1.5

	for _, c := range allCompressions {
		var buf bytes.Buffer
		require.NoError(t, EncodeRGB32Float(&buf, width, height, pix, c, 0))
		d := readTIFF(t, buf.Bytes())

		assert.Equal(t, width, d.width)
		assert.Equal(t, height, d.height)
		assert.Equal(t, []uint32{32, 32, 32}, d.tags[tBitsPerSample])
		assert.Equal(t, []uint32{3, 3, 3}, d.tags[tSampleFormat])
		assert.Equal(t, []uint32{3}, d.tags[tSamplesPerPixel])
		assert.Equal(t, []uint32{2}, d.tags[tPhotometricInterpretation])
		assert.Equal(t, []uint32{1}, d.tags[tPlanarConfiguration])
		assert.Equal(t, []uint32{c.tagValue()}, d.tags[tCompression])
		assert.Equal(t, []uint32{72, 1}, d.tags[tXResolution])
		assert.Equal(t, []uint32{42}, d.tags[tRowsPerStrip])
		assert.Len(t, d.tags[tStripOffsets], 5)

		require.Len(t, d.data, 4*len(pix))
		for i, want := range pix {
			got := math.Float32frombits(binary.LittleEndian.Uint32(d.data[4*i:]))
			if got != want {
				t.Fatalf("compression %v sample %d: got %f want %f", c, i, got, want)
			}
		}
	}
}

func TestWideRowsGetOneRowPerStrip(t *testing.T) {
	width, height := 6000, 3 // 72000 bytes per float row
	pix := make([]float32, 3*width*height)
	var buf bytes.Buffer
	require.NoError(t, EncodeRGB32Float(&buf, width, height, pix, PackBits, 2))
	d := readTIFF(t, buf.Bytes())
	assert.Equal(t, []uint32{1}, d.tags[tRowsPerStrip])
	assert.Len(t, d.tags[tStripOffsets], 3)
	assert.Len(t, d.data, 4*len(pix))
	assert.Less(t, buf.Len(), 4*len(pix)/10, "zero rows should pack well")
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, EncodeRGB8(&buf, 0, 5, nil, None, 1), ErrEmptyImage)
	assert.ErrorIs(t, EncodeRGB32Float(&buf, 4, 0, nil, Deflate, 1), ErrEmptyImage)
	assert.Error(t, EncodeRGB8(&buf, 2, 2, make([]uint8, 11), None, 1))
	assert.Error(t, EncodeRGB32Float(&buf, 2, 2, make([]float32, 13), None, 1))
	assert.Error(t, EncodeRGB8(&buf, 1, 1, make([]uint8, 3), Compression(9), 1))
	assert.Zero(t, buf.Len())
}
