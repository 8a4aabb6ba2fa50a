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
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// A file written to a temporary name, waiting to be renamed into place
type pendingFile struct {
	fileName string
	tmpName  string
}

// Writes data to a temporary file next to fileName and renames it into place,
// so readers never see a partially written file
func writeFileAtomic(fileName string, data []byte) error {
	p, err := writeTemp(fileName, data)
	if err != nil {
		return err
	}
	return commitFiles(p)
}

// Writes data to a synced temporary file in the directory of fileName
func writeTemp(fileName string, data []byte) (p *pendingFile, err error) {
	dir, base := filepath.Split(fileName)
	tmpName := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", fileName, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing %s: %w", fileName, err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing %s: %w", fileName, err)
	}
	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("writing %s: %w", fileName, err)
	}
	return &pendingFile{fileName: fileName, tmpName: tmpName}, nil
}

// Removes the temporary files of the given pending files. Nil entries are skipped
func discardFiles(files ...*pendingFile) {
	for _, p := range files {
		if p != nil {
			os.Remove(p.tmpName)
		}
	}
}

// Renames all pending files into place. If one rename fails, the files already renamed are
// removed again and the remaining temporary files are discarded, so either all files appear
// or none do
func commitFiles(files ...*pendingFile) error {
	for i, p := range files {
		if err := os.Rename(p.tmpName, p.fileName); err != nil {
			for _, done := range files[:i] {
				os.Remove(done.fileName)
			}
			discardFiles(files[i:]...)
			return fmt.Errorf("writing %s: %w", p.fileName, err)
		}
	}
	return nil
}
