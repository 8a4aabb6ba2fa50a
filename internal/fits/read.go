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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Header card layout: keyword in columns 1-8, value indicator "= " in 9-10
const (
	keywordLen = 8
	valueStart = 10
)

// Reads a FITS image from the named file. Decompresses gzip if .gz or .gzip suffix is present
func NewImageFromFile(fileName string, logWriter io.Writer) (*Image, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	lExt := strings.ToLower(path.Ext(fileName))
	if lExt == ".gz" || lExt == ".gzip" {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	img := NewImage()
	img.FileName = fileName
	return img, img.Read(r, logWriter)
}

func (fits *Image) popHeaderInt32(key string) (res int32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("FITS header does not contain key %s", key)
}

func (fits *Image) popHeaderInt32OrFloat(key string) (res float32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return float32(val), nil
	} else if val, ok := fits.Header.Floats[key]; ok {
		delete(fits.Header.Floats, key)
		return val, nil
	}
	return 0, fmt.Errorf("FITS header does not contain key %s", key)
}

// Reads header and data. Only 32-bit float data is supported, which is what Write produces
func (fits *Image) Read(f io.Reader, logWriter io.Writer) (err error) {
	if err = fits.Header.read(f, logWriter); err != nil {
		return err
	}

	// check mandatory fields as per standard
	if !fits.Header.Bools["SIMPLE"] {
		return fmt.Errorf("not a valid FITS file; SIMPLE=T missing in header")
	}
	delete(fits.Header.Bools, "SIMPLE")

	if fits.Bitpix, err = fits.popHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = fits.popHeaderInt32("NAXIS"); err != nil {
		return err
	}
	fits.Naxisn = make([]int32, naxis)
	fits.Pixels = 1
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = fits.popHeaderInt32(name); err != nil {
			return err
		}
		fits.Naxisn[i-1] = nai
		fits.Pixels *= int(nai)
	}

	if fits.Bzero, err = fits.popHeaderInt32OrFloat("BZERO"); err != nil {
		fits.Bzero = 0
	}
	if fits.Bscale, err = fits.popHeaderInt32OrFloat("BSCALE"); err != nil {
		fits.Bscale = 1
	}

	if fits.Bitpix != -32 {
		return fmt.Errorf("unsupported BITPIX value %d", fits.Bitpix)
	}
	return fits.readFloat32Data(f)
}

// Batched read of float data from the file, converting from network byte order and adjusting for Bzero
func (fits *Image) readFloat32Data(r io.Reader) error {
	fits.Data = make([]float32, fits.Pixels)
	buf := make([]byte, bufLen)

	for block := 0; block < len(fits.Data); block += bufLen >> 2 {
		size := len(fits.Data) - block
		if size > bufLen>>2 {
			size = bufLen >> 2
		}
		if _, err := io.ReadFull(r, buf[:size<<2]); err != nil {
			return fmt.Errorf("reading FITS data: %w", err)
		}
		for i := 0; i < size; i++ {
			bits := (uint32(buf[i<<2]) << 24) | (uint32(buf[(i<<2)+1]) << 16) | (uint32(buf[(i<<2)+2]) << 8) | uint32(buf[(i<<2)+3])
			fits.Data[block+i] = math.Float32frombits(bits)*fits.Bscale + fits.Bzero
		}
	}
	fits.Bzero, fits.Bscale = 0, 1 // reflect that data values incorporate these now
	return nil
}

// Reads header blocks up to and including the one holding the END card
func (h *Header) read(r io.Reader, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)
	for end := false; !end; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("reading FITS header: %w", err)
		}
		for lineNo := 0; lineNo < fitsBlockSize/HeaderLineSize && !end; lineNo++ {
			card := string(buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize])
			end = h.readCard(card, logWriter)
		}
	}
	return nil
}

// Parses one 80 character header card into the header. Returns true on the END card
func (h *Header) readCard(card string, logWriter io.Writer) (end bool) {
	keyword := strings.TrimSpace(card[:keywordLen])
	switch keyword {
	case "END":
		return true
	case "":
		return false
	case "HISTORY":
		h.History = append(h.History, strings.TrimSpace(card[keywordLen:]))
		return false
	case "COMMENT":
		h.Comments = append(h.Comments, strings.TrimSpace(card[keywordLen:]))
		return false
	}
	if card[keywordLen:valueStart] != "= " {
		fmt.Fprintf(logWriter, "Warning: Cannot parse '%s', ignoring\n", card)
		return false
	}

	value := strings.TrimLeft(card[valueStart:], " ")
	if strings.HasPrefix(value, "'") {
		s, ok := parseString(value)
		if !ok {
			fmt.Fprintf(logWriter, "Warning: Unterminated string in '%s', ignoring\n", card)
			return false
		}
		h.Strings[keyword] = s
		return false
	}
	if i := strings.IndexByte(value, '/'); i >= 0 {
		value = value[:i]
	}
	value = strings.TrimSpace(value)

	switch {
	case value == "T" || value == "F":
		h.Bools[keyword] = value == "T"
	case isInt(value):
		if v, err := strconv.ParseInt(value, 10, 32); err == nil {
			h.Ints[keyword] = int32(v)
		} else if v, err := strconv.ParseFloat(value, 64); err == nil {
			h.Floats[keyword] = float32(v)
		}
	default:
		v, err := strconv.ParseFloat(strings.Replace(value, "D", "E", 1), 64)
		if err != nil {
			fmt.Fprintf(logWriter, "Warning: Cannot parse value of %s: '%s', ignoring\n", keyword, value)
			return false
		}
		h.Floats[keyword] = float32(v)
	}
	return false
}

// Parses a quoted FITS string value, where '' stands for a single quote. Trailing blanks are
// not significant
func parseString(value string) (string, bool) {
	var sb strings.Builder
	for i := 1; i < len(value); i++ {
		if value[i] != '\'' {
			sb.WriteByte(value[i])
			continue
		}
		if i+1 < len(value) && value[i+1] == '\'' {
			sb.WriteByte('\'')
			i++
			continue
		}
		return strings.TrimRight(sb.String(), " "), true
	}
	return "", false
}

// True for an optionally signed decimal integer
func isInt(value string) bool {
	digits := strings.TrimLeft(value, "+-")
	if digits == "" || len(value)-len(digits) > 1 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
