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

package parallel

import (
	"runtime"
)

// Number of work packages per thread. More packages than threads balances uneven batches
const batchesPerThread = 8

// Minimum number of elements in a work package, below that goroutine overhead dominates
const minBatchSize = 4096

// A range function. Processes elements [lower, upper) of some array the caller owns.
type RangeFunction func(lower, upper int)

// A chunk function. Like a range function, but also receives the sequential number of the chunk
type ChunkFunction func(chunk, lower, upper int)

// Returns the given thread limit, or GOMAXPROCS if it is not positive
func Threads(maxThreads int) int {
	if maxThreads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return maxThreads
}

// Apply given range function to [0,n). Splits into batchesPerThread*maxThreads work packages and
// limits parallelism to maxThreads. Each package must only write to elements in its own range.
func For(n, maxThreads int, rf RangeFunction) {
	if n <= 0 {
		return
	}
	maxThreads = Threads(maxThreads)
	numBatches := batchesPerThread * maxThreads
	batchSize := (n + numBatches - 1) / numBatches
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}
	if batchSize >= n || maxThreads == 1 {
		rf(0, n)
		return
	}

	sem := make(chan bool, maxThreads)
	for lower := 0; lower < n; lower += batchSize {
		upper := lower + batchSize
		if upper > n {
			upper = n
		}

		sem <- true
		go func(lower, upper int) {
			rf(lower, upper)
			<-sem
		}(lower, upper)
	}

	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// Splits [0,n) into the contiguous ascending chunks described by Chunks(n, maxThreads), and applies
// the chunk function to each with at most maxThreads in parallel. The chunk layout only depends on
// n and maxThreads, so two passes with the same arguments see identical chunks.
func ForChunks(n, maxThreads int, cf ChunkFunction) {
	numChunks, chunkSize := Chunks(n, maxThreads)
	if numChunks == 0 {
		return
	}
	if numChunks == 1 {
		cf(0, 0, n)
		return
	}

	sem := make(chan bool, Threads(maxThreads))
	for c := 0; c < numChunks; c++ {
		lower, upper := ChunkRange(c, chunkSize, n)

		sem <- true
		go func(c, lower, upper int) {
			cf(c, lower, upper)
			<-sem
		}(c, lower, upper)
	}

	for i := 0; i < cap(sem); i++ {
		sem <- true
	}
}

// Number and size of the chunks ForChunks uses for n elements. No chunk is empty.
func Chunks(n, maxThreads int) (numChunks, chunkSize int) {
	if n <= 0 {
		return 0, 0
	}
	numChunks = Threads(maxThreads)
	if limit := (n + minBatchSize - 1) / minBatchSize; numChunks > limit {
		numChunks = limit
	}
	chunkSize = (n + numChunks - 1) / numChunks
	numChunks = (n + chunkSize - 1) / chunkSize
	return numChunks, chunkSize
}

// Bounds of chunk c for the given chunk size
func ChunkRange(c, chunkSize, n int) (lower, upper int) {
	lower = c * chunkSize
	upper = lower + chunkSize
	if upper > n {
		upper = n
	}
	return lower, upper
}

// Runs the given functions concurrently and returns when all of them have finished
func Join(fns ...func()) {
	done := make(chan bool, len(fns))
	for _, fn := range fns {
		go func(fn func()) {
			fn()
			done <- true
		}(fn)
	}
	for range fns {
		<-done
	}
}

// Applies fn to each of n coarse-grained work items, with at most maxThreads in parallel
func Each(n, maxThreads int, fn func(i int)) {
	if n <= 0 {
		return
	}
	sem := make(chan bool, Threads(maxThreads))
	for i := 0; i < n; i++ {
		sem <- true
		go func(i int) {
			fn(i)
			<-sem
		}(i)
	}
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}
}
