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

// Package gauss evaluates the normal distribution used for histogram
// Gaussianization: its cumulative distribution function and its quantile
// function, both in closed form via the error function and its inverse.
package gauss

import (
	"fmt"
	"math"
)

// Target distribution of the forward transform. A 3 sigma band around Mu
// spans exactly the normalized intensity range [0,1].
const (
	Mu    = 0.5
	Sigma = 1.0 / 6
)

// DomainError reports a quantile argument outside the open interval (0,1).
type DomainError struct {
	U float64
}

func (e DomainError) Error() string {
	return fmt.Sprintf("gauss: quantile argument %g outside (0,1)", e.U)
}

// Probability that a normal variable with the given mean and standard deviation is <= x
func CDF(x, mu, sigma float64) float64 {
	return 0.5 * (1 + math.Erf((x-mu)/(sigma*math.Sqrt2)))
}

// Returns x such that CDF(x, mu, sigma)==u. Panics with a DomainError unless 0<u<1,
// since erfinv diverges at the interval bounds.
func Quantile(u, mu, sigma float64) float64 {
	arg := 2*u - 1
	if !(arg > -1 && arg < 1) {
		panic(DomainError{U: u})
	}
	return mu + sigma*math.Sqrt2*math.Erfinv(arg)
}

// Normalized rank of the given order statistic among n samples, in (0,1) for n>=1
func NormalizedRank(rank, n int) float64 {
	return (float64(rank) + 0.5) / float64(n)
}
