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

// Package ops loads textures, runs the Gaussian histogram transform on them and saves
// the transformed image and its inverse lookup table.
package ops

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

var (
	ErrNoInput        = errors.New("no input file specified")
	ErrUnknownFormat  = errors.New("unknown output format")
	ErrPathNotAllowed = errors.New("path outside current directory tree")
	ErrOutOfMemory    = errors.New("insufficient memory")
)

// An execution context for jobs
type Context struct {
	Log        io.Writer
	MemoryMB   int    // memory.TotalMemory()/1024/1024
	MaxThreads int    `json:"maxThreads"`
	MaxJobs    int    `json:"maxJobs"` // Number of jobs run concurrently by RunAll
	CPU        string // Processor description for the log
}

func NewContext(log io.Writer) *Context {
	return &Context{
		Log:        log,
		MemoryMB:   int(memory.TotalMemory() / 1024 / 1024),
		MaxThreads: runtime.GOMAXPROCS(0),
		MaxJobs:    1,
		CPU:        cpuDescription(),
	}
}

func cpuDescription() string {
	c := cpuid.CPU
	simd := ""
	if c.AVX2() {
		simd = ", AVX2"
	}
	return fmt.Sprintf("%s (%d physical cores, %d logical%s)", c.BrandName, c.PhysicalCores, c.LogicalCores, simd)
}

// Bytes per pixel needed for a transform: three byte channels, per channel the sort order and rank
// arrays plus sorted values and forward floats, and two interleaved float copies for output
const bytesPerPixel = 3 + 3*(4+4+1+4) + 2*3*4

// Estimated memory need of a transform in MiB
func EstimateMB(width, height, lutSize int) int {
	bytes := int64(width) * int64(height) * bytesPerPixel
	bytes += int64(lutSize) * 3 * 2
	return int((bytes + (1<<20 - 1)) >> 20)
}

// Checks that a transform of the given dimensions fits into physical memory. A zero MemoryMB
// disables the check
func (c *Context) CheckMemory(width, height, lutSize int) error {
	need := EstimateMB(width, height, lutSize)
	if c.MemoryMB > 0 && need*c.maxJobs() > c.MemoryMB {
		return fmt.Errorf("%w: %dx%d pixels need about %d MiB per job, %d MiB available",
			ErrOutOfMemory, width, height, need, c.MemoryMB)
	}
	return nil
}

func (c *Context) maxJobs() int {
	if c.MaxJobs < 1 {
		return 1
	}
	return c.MaxJobs
}
