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

// Package tiff writes three-channel RGB images with 32-bit float or 8-bit unsigned samples
// as baseline-style little-endian TIFF files, which the golang.org/x/image/tiff encoder
// cannot produce.
// Spec here: https://www.itu.int/itudoc/itu-t/com16/tiff-fx/docs/tiff6.pdf
package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/mlnoga/gausstex/internal/parallel"
)

// Compression scheme for the image strips
type Compression int

const (
	None Compression = iota
	PackBits
	Deflate
)

var ErrEmptyImage = errors.New("tiff: cannot encode image with zero width or height")
var ErrTooLarge = errors.New("tiff: encoded image exceeds 4 GiB")

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case PackBits:
		return "packbits"
	case Deflate:
		return "deflate"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// Parses a compression name as printed by String
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return None, nil
	case "packbits":
		return PackBits, nil
	case "deflate", "zip":
		return Deflate, nil
	}
	return None, fmt.Errorf("tiff: unknown compression '%s'", s)
}

// Value of the compression tag
func (c Compression) tagValue() uint32 {
	switch c {
	case PackBits:
		return 32773
	case Deflate:
		return 8
	}
	return 1
}

// Tags used by the encoder, in ascending order
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tXResolution               = 282
	tYResolution               = 283
	tPlanarConfiguration       = 284
	tResolutionUnit            = 296
	tSampleFormat              = 339
)

// Field data types
const (
	dtShort    = 3
	dtLong     = 4
	dtRational = 5
)

const (
	sampleFormatUint  = 1
	sampleFormatFloat = 3
	photometricRGB    = 2
	samplesPerPixel   = 3
)

// Target uncompressed strip size. Every strip holds at least one row
const stripBytes = 64 * 1024

// Encodes interleaved RGB 32-bit float pixels
func EncodeRGB32Float(w io.Writer, width, height int, pix []float32, c Compression, maxThreads int) error {
	if len(pix) != samplesPerPixel*width*height {
		return fmt.Errorf("tiff: %d float samples for %dx%d RGB image", len(pix), width, height)
	}
	rowBytes := func(y int, dst []byte) {
		row := pix[y*width*samplesPerPixel : (y+1)*width*samplesPerPixel]
		for i, v := range row {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	}
	return encode(w, width, height, 32, sampleFormatFloat, rowBytes, c, maxThreads)
}

// Encodes interleaved RGB 8-bit pixels
func EncodeRGB8(w io.Writer, width, height int, pix []uint8, c Compression, maxThreads int) error {
	if len(pix) != samplesPerPixel*width*height {
		return fmt.Errorf("tiff: %d byte samples for %dx%d RGB image", len(pix), width, height)
	}
	rowBytes := func(y int, dst []byte) {
		copy(dst, pix[y*width*samplesPerPixel:(y+1)*width*samplesPerPixel])
	}
	return encode(w, width, height, 8, sampleFormatUint, rowBytes, c, maxThreads)
}

// An IFD entry. Values which don't fit into four bytes are written to the data area
type ifdEntry struct {
	tag      uint16
	datatype uint16
	values   []uint32
}

func (e ifdEntry) size() int {
	switch e.datatype {
	case dtShort:
		return 2 * len(e.values)
	case dtRational:
		return 4 * len(e.values) // stored as numerator, denominator pairs
	}
	return 4 * len(e.values)
}

func (e ifdEntry) count() uint32 {
	if e.datatype == dtRational {
		return uint32(len(e.values) / 2)
	}
	return uint32(len(e.values))
}

func (e ifdEntry) putValues(dst []byte) {
	for i, v := range e.values {
		if e.datatype == dtShort {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(dst[4*i:], v)
		}
	}
}

func encode(w io.Writer, width, height, bitsPerSample int, sampleFormat uint32,
	rowBytes func(y int, dst []byte), c Compression, maxThreads int) error {
	if width <= 0 || height <= 0 {
		return ErrEmptyImage
	}
	rowSize := width * samplesPerPixel * bitsPerSample / 8
	rowsPerStrip := stripBytes / rowSize
	if rowsPerStrip < 1 {
		rowsPerStrip = 1
	}
	if rowsPerStrip > height {
		rowsPerStrip = height
	}
	numStrips := (height + rowsPerStrip - 1) / rowsPerStrip

	strips, err := compressStrips(height, rowSize, rowsPerStrip, numStrips, rowBytes, c, maxThreads)
	if err != nil {
		return err
	}

	offsets := make([]uint32, numStrips)
	counts := make([]uint32, numStrips)
	bps := uint32(bitsPerSample)
	entries := []ifdEntry{
		{tImageWidth, dtLong, []uint32{uint32(width)}},
		{tImageLength, dtLong, []uint32{uint32(height)}},
		{tBitsPerSample, dtShort, []uint32{bps, bps, bps}},
		{tCompression, dtShort, []uint32{c.tagValue()}},
		{tPhotometricInterpretation, dtShort, []uint32{photometricRGB}},
		{tStripOffsets, dtLong, offsets},
		{tSamplesPerPixel, dtShort, []uint32{samplesPerPixel}},
		{tRowsPerStrip, dtLong, []uint32{uint32(rowsPerStrip)}},
		{tStripByteCounts, dtLong, counts},
		{tXResolution, dtRational, []uint32{72, 1}},
		{tYResolution, dtRational, []uint32{72, 1}},
		{tPlanarConfiguration, dtShort, []uint32{1}}, // chunky
		{tResolutionUnit, dtShort, []uint32{2}},      // inch
		{tSampleFormat, dtShort, []uint32{sampleFormat, sampleFormat, sampleFormat}},
	}

	// header, IFD, out-of-line values, then strip data
	ifdSize := 2 + 12*len(entries) + 4
	dataOffset := 8 + ifdSize
	stripOffset := dataOffset
	for _, e := range entries {
		if e.size() > 4 {
			stripOffset += e.size()
		}
	}
	total := uint64(stripOffset)
	for i, s := range strips {
		offsets[i] = uint32(total)
		counts[i] = uint32(len(s))
		total += uint64(len(s))
		if total > math.MaxUint32 {
			return ErrTooLarge
		}
	}

	head := make([]byte, stripOffset)
	copy(head, "II")
	binary.LittleEndian.PutUint16(head[2:], 42)
	binary.LittleEndian.PutUint32(head[4:], 8)
	binary.LittleEndian.PutUint16(head[8:], uint16(len(entries)))
	next := dataOffset
	for i, e := range entries {
		field := head[10+12*i : 10+12*(i+1)]
		binary.LittleEndian.PutUint16(field[0:], e.tag)
		binary.LittleEndian.PutUint16(field[2:], e.datatype)
		binary.LittleEndian.PutUint32(field[4:], e.count())
		if e.size() <= 4 {
			e.putValues(field[8:])
		} else {
			binary.LittleEndian.PutUint32(field[8:], uint32(next))
			e.putValues(head[next:])
			next += e.size()
		}
	}
	// the next-IFD offset after the entries stays zero

	if _, err := w.Write(head); err != nil {
		return err
	}
	for _, s := range strips {
		if _, err := w.Write(s); err != nil {
			return err
		}
	}
	return nil
}

// Converts and compresses all strips in parallel
func compressStrips(height, rowSize, rowsPerStrip, numStrips int, rowBytes func(y int, dst []byte),
	c Compression, maxThreads int) ([][]byte, error) {
	strips := make([][]byte, numStrips)
	errs := make([]error, numStrips)
	parallel.Each(numStrips, maxThreads, func(s int) {
		lower := s * rowsPerStrip
		upper := lower + rowsPerStrip
		if upper > height {
			upper = height
		}
		raw := make([]byte, (upper-lower)*rowSize)
		for y := lower; y < upper; y++ {
			rowBytes(y, raw[(y-lower)*rowSize:(y-lower+1)*rowSize])
		}
		strips[s], errs[s] = compressStrip(raw, rowSize, c)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return strips, nil
}

func compressStrip(raw []byte, rowSize int, c Compression) ([]byte, error) {
	switch c {
	case None:
		return raw, nil
	case PackBits:
		// rows are packed separately
		out := make([]byte, 0, len(raw)+len(raw)/maxRun+1)
		for lower := 0; lower < len(raw); lower += rowSize {
			out = appendPackBits(out, raw[lower:lower+rowSize])
		}
		return out, nil
	case Deflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("tiff: unsupported compression %v", c)
}
