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

package ops

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlnoga/gausstex/internal/fits"
	"github.com/mlnoga/gausstex/internal/gauss"
	"github.com/mlnoga/gausstex/internal/histo"
	"github.com/mlnoga/gausstex/internal/preview"
	"github.com/mlnoga/gausstex/internal/tiff"
)

const (
	imgSuffix      = "gaussian"
	lutSuffix      = "lut"
	fallbackStem   = "Texture"
	DefaultOutDir  = "./"
	DefaultFormat  = "tif"
	DefaultPreview = ""
)

// Output formats for the transformed image. The LUT is always an 8-bit TIFF
const (
	FormatTIFF   = "tif"
	FormatFITS   = "fits"
	FormatFITSGz = "fits.gz"
)

// A precompute job: one input texture, two outputs
type Job struct {
	ID          string `json:"id"`
	InFile      string `json:"inFile"`
	OutDir      string `json:"outDir"`      // Output directory. If not a directory, its parent is used
	ImgPrefix   string `json:"imgPrefix"`   // Image file name without extension. Default <stem>-gaussian
	LUTPrefix   string `json:"lutPrefix"`   // LUT file name without extension. Default <stem>-lut
	LUTSize     int    `json:"lutSize"`     // Entries per channel in the LUT. 0 = image width
	Format      string `json:"format"`      // tif, fits or fits.gz
	Compression string `json:"compression"` // packbits, deflate or none
	Preview     string `json:"preview"`     // jpg, tif or empty for none
}

func NewJob(inFile string) *Job {
	return &Job{
		InFile:      inFile,
		OutDir:      DefaultOutDir,
		Format:      DefaultFormat,
		Compression: tiff.PackBits.String(),
		Preview:     DefaultPreview,
	}
}

// Fills in defaults for settings left empty, e.g. by a JSON request
func (j *Job) SetDefaults() {
	if j.OutDir == "" {
		j.OutDir = DefaultOutDir
	}
	if j.Format == "" {
		j.Format = DefaultFormat
	}
	if j.Compression == "" {
		j.Compression = tiff.PackBits.String()
	}
}

// Files written by a job
type Output struct {
	ImageFile   string        `json:"imageFile"`
	LUTFile     string        `json:"lutFile"`
	PreviewFile string        `json:"previewFile,omitempty"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	LUTSize     int           `json:"lutSize"`
	Elapsed     time.Duration `json:"elapsed"`
}

func (j *Job) label() string {
	if j.ID != "" {
		return j.ID
	}
	return j.InFile
}

func (j *Job) format() (string, error) {
	switch f := strings.TrimPrefix(strings.ToLower(j.Format), "."); f {
	case "", "tif", "tiff":
		return FormatTIFF, nil
	case FormatFITS, "fit", "fts":
		return FormatFITS, nil
	case FormatFITSGz, "fit.gz", "fts.gz":
		return FormatFITSGz, nil
	}
	return "", fmt.Errorf("%w '%s'", ErrUnknownFormat, j.Format)
}

func (j *Job) preview() (string, error) {
	switch p := strings.TrimPrefix(strings.ToLower(j.Preview), "."); p {
	case "":
		return "", nil
	case "jpg", "jpeg":
		return "jpg", nil
	case "tif", "tiff":
		return "tif", nil
	}
	return "", fmt.Errorf("%w '%s' for preview", ErrUnknownFormat, j.Preview)
}

// Returns the file name up to the first dot, ignoring a leading dot
func fileStem(fileName string) string {
	base := filepath.Base(fileName)
	if base == "." || base == string(filepath.Separator) {
		return fallbackStem
	}
	if i := strings.IndexByte(base[1:], '.'); i >= 0 {
		base = base[:i+1]
	}
	if base == "" {
		return fallbackStem
	}
	return base
}

// Checks that an output prefix names a file in the output directory. Empty selects the default
func isFileName(prefix string) bool {
	if prefix == "" {
		return true
	}
	return prefix != "." && prefix != ".." && !strings.ContainsAny(prefix, `/\`) &&
		filepath.Base(prefix) == prefix && filepath.VolumeName(prefix) == ""
}

// Returns the given path if it is a directory, else its parent
func outDirectory(p string) string {
	if p == "" {
		return "."
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return filepath.Dir(p)
}

// Output file names for the image, the LUT and the optional preview
func (j *Job) OutputNames() (img, lut, prev string, err error) {
	if j.InFile == "" {
		return "", "", "", ErrNoInput
	}
	format, err := j.format()
	if err != nil {
		return "", "", "", err
	}
	prevFormat, err := j.preview()
	if err != nil {
		return "", "", "", err
	}

	for _, prefix := range []string{j.ImgPrefix, j.LUTPrefix} {
		if !isFileName(prefix) {
			return "", "", "", fmt.Errorf("%w: prefix '%s' is not a plain file name", ErrPathNotAllowed, prefix)
		}
	}

	dir := outDirectory(j.OutDir)
	stem := fileStem(j.InFile)
	imgName := j.ImgPrefix
	if imgName == "" {
		imgName = stem + "-" + imgSuffix
	}
	lutName := j.LUTPrefix
	if lutName == "" {
		lutName = stem + "-" + lutSuffix
	}

	img = filepath.Join(dir, imgName+"."+format)
	lut = filepath.Join(dir, lutName+".tif")
	if prevFormat != "" {
		prev = filepath.Join(dir, imgName+"-preview."+prevFormat)
	}
	return img, lut, prev, nil
}

// Loads the input, transforms it, and writes the image and LUT files. Both outputs are encoded
// in memory first and renamed into place together, so a failing job leaves no files behind
func (j *Job) Run(c *Context) (*Output, error) {
	imgFile, lutFile, prevFile, err := j.OutputNames()
	if err != nil {
		return nil, err
	}
	outFormat, err := j.format()
	if err != nil {
		return nil, err
	}
	comp, err := tiff.ParseCompression(j.Compression)
	if err != nil {
		return nil, err
	}
	if j.LUTSize < 0 {
		return nil, fmt.Errorf("negative LUT size %d", j.LUTSize)
	}

	img, inFormat, err := LoadImage(j.InFile)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	fmt.Fprintf(c.Log, "%s: Loaded %dx%d %s image from %s\n", j.label(), b.Dx(), b.Dy(), inFormat, j.InFile)
	return j.process(c, img, outputFiles{imgFile, lutFile, prevFile}, outFormat, comp)
}

// Output file names of a job
type outputFiles struct {
	img, lut, prev string
}

// Transforms a decoded image and writes the outputs
func (j *Job) process(c *Context, img image.Image, files outputFiles, outFormat string, comp tiff.Compression) (*Output, error) {
	imgFile, lutFile, prevFile := files.img, files.lut, files.prev
	b := img.Bounds()
	if err := c.CheckMemory(b.Dx(), b.Dy(), j.LUTSize); err != nil {
		return nil, err
	}

	fmt.Fprintf(c.Log, "%s: Processing %s...\n", j.label(), j.InFile)
	start := time.Now()
	ch := histo.SplitImage(img, c.MaxThreads)
	res := histo.Transform(ch, histo.Options{LUTSize: j.LUTSize, MaxThreads: c.MaxThreads})
	elapsed := time.Since(start)
	fmt.Fprintf(c.Log, "%s: Finished processing. Took %v\n", j.label(), elapsed)
	report(c.Log, j.label(), ch, res)

	var imgBuf, lutBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		return encodeImage(&imgBuf, res, outFormat, comp, j.InFile, c.MaxThreads)
	})
	g.Go(func() error {
		return tiff.EncodeRGB8(&lutBuf, res.LUTSize, 1, res.LUT, comp, c.MaxThreads)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", j.InFile, err)
	}

	fmt.Fprintf(c.Log, "%s: Writing output to %s and %s in directory %s\n",
		j.label(), filepath.Base(imgFile), filepath.Base(lutFile), filepath.Dir(imgFile))
	var imgTmp, lutTmp *pendingFile
	var w errgroup.Group
	w.Go(func() (err error) {
		imgTmp, err = writeTemp(imgFile, imgBuf.Bytes())
		return err
	})
	w.Go(func() (err error) {
		lutTmp, err = writeTemp(lutFile, lutBuf.Bytes())
		return err
	})
	if err := w.Wait(); err != nil {
		discardFiles(imgTmp, lutTmp)
		return nil, err
	}
	if err := commitFiles(imgTmp, lutTmp); err != nil {
		return nil, err
	}

	if prevFile != "" {
		if err := writePreview(prevFile, res, c.MaxThreads); err != nil {
			return nil, err
		}
		fmt.Fprintf(c.Log, "%s: Wrote preview to %s\n", j.label(), prevFile)
	}

	return &Output{
		ImageFile:   imgFile,
		LUTFile:     lutFile,
		PreviewFile: prevFile,
		Width:       res.Width,
		Height:      res.Height,
		LUTSize:     res.LUTSize,
		Elapsed:     elapsed,
	}, nil
}

func encodeImage(buf *bytes.Buffer, res *histo.Result, format string, comp tiff.Compression, inFile string, maxThreads int) error {
	if format == FormatTIFF {
		return tiff.EncodeRGB32Float(buf, res.Width, res.Height, res.Image, comp, maxThreads)
	}
	f := fits.NewRGBFromInterleaved(res.Width, res.Height, res.Image, maxThreads)
	f.Header.Floats["GAUSSMU"] = gauss.Mu
	f.Header.Floats["GAUSSSIG"] = gauss.Sigma
	f.Header.Ints["LUTSIZE"] = int32(res.LUTSize)
	f.Header.Strings["ORIGFILE"] = filepath.Base(inFile)
	f.Header.History = append(f.Header.History, "Gaussianized texture, rank to normal quantile per channel")
	if format == FormatFITSGz {
		return f.WriteGzip(buf)
	}
	return f.Write(buf)
}

func writePreview(fileName string, res *histo.Result, maxThreads int) error {
	var buf bytes.Buffer
	var err error
	if strings.HasSuffix(fileName, ".jpg") {
		err = preview.WriteJPG(&buf, res.Width, res.Height, res.Image, preview.DefaultSettings, maxThreads)
	} else {
		err = preview.WriteTIFF16(&buf, res.Width, res.Height, res.Image, preview.DefaultSettings, maxThreads)
	}
	if err != nil {
		return fmt.Errorf("preview %s: %w", fileName, err)
	}
	return writeFileAtomic(fileName, buf.Bytes())
}
