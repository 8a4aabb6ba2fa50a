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
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// register decoders for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Loads an image from a file, detecting the format from its content
func LoadImage(fileName string) (img image.Image, format string, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err = image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", fileName, err)
	}
	return img, format, nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func IsPathAllowed(p string) bool {
	if filepath.IsAbs(p) {
		return false // relative paths only
	}
	if strings.Contains(p, "..") {
		return false // no going outside the tree
	}
	return true
}

// Expands file name patterns with wildcards. Patterns without matches are an error
func ExpandPatterns(patterns []string) (fileNames []string, err error) {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern %s", pattern)
		}
		fileNames = append(fileNames, matches...)
	}
	return fileNames, nil
}

// Reports whether the file name carries a FITS extension, optionally gzipped
func isFITSFile(fileName string) bool {
	name := strings.TrimSuffix(strings.ToLower(fileName), ".gz")
	for _, ext := range []string{".fits", ".fit", ".fts"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
