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

// Maximum length of a PackBits literal or replicate run
const maxRun = 128

// Appends the PackBits encoding of data to dst. A header byte n in [0,127] precedes n+1 literal
// bytes, a header byte n in [-127,-1] is followed by one byte to repeat 1-n times.
func appendPackBits(dst, data []byte) []byte {
	i := 0
	for i < len(data) {
		runLen := 1
		for i+runLen < len(data) && runLen < maxRun && data[i+runLen] == data[i] {
			runLen++
		}
		if runLen > 1 {
			dst = append(dst, byte(int8(1-runLen)), data[i])
			i += runLen
			continue
		}

		// extend the literal until three equal bytes start a run worth encoding
		litLen := 1
		for i+litLen < len(data) && litLen < maxRun {
			j := i + litLen
			if j+2 < len(data) && data[j] == data[j+1] && data[j] == data[j+2] {
				break
			}
			litLen++
		}
		dst = append(dst, byte(litLen-1))
		dst = append(dst, data[i:i+litLen]...)
		i += litLen
	}
	return dst
}
