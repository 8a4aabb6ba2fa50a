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
	"io"

	"github.com/mlnoga/gausstex/internal/fits"
	"github.com/mlnoga/gausstex/internal/gauss"
	"github.com/mlnoga/gausstex/internal/histo"
	"github.com/mlnoga/gausstex/internal/stats"
)

var channelNames = [3]string{"R", "G", "B"}

// Histogram range and resolution for checking the forward output against the target distribution
const (
	fitBins = 128
	fitMin  = float32(gauss.Mu - 4.5*gauss.Sigma)
	fitMax  = float32(gauss.Mu + 4.5*gauss.Sigma)
)

// Per-channel statistics of input and transformed data
type ChannelReport struct {
	Channel  string       `json:"channel"`
	Input    *stats.Stats `json:"input,omitempty"`
	Forward  *stats.Stats `json:"forward,omitempty"`
	FitMu    float32      `json:"fitMu,omitempty"`
	FitSigma float32      `json:"fitSigma,omitempty"`
}

// Computes per-channel input statistics
func inputStats(ch *histo.Channels) [3]*stats.Stats {
	var res [3]*stats.Stats
	for i := range res {
		res[i] = stats.NewStatsUint8(ch.Channel(i), stats.DefaultSamples)
	}
	return res
}

// Logs input statistics and mean color
func reportInput(w io.Writer, label string, ch *histo.Channels) [3]*stats.Stats {
	in := inputStats(ch)
	for i, s := range in {
		fmt.Fprintf(w, "%s: Input %s: %v\n", label, channelNames[i], s)
	}
	fmt.Fprintf(w, "%s: Mean input color %s\n", label, stats.MeanColorHex(in[0], in[1], in[2], 255))
	return in
}

// Computes statistics of forward-transformed values and fits a normal distribution to their
// histogram, logging both
func forwardReport(w io.Writer, label, channel string, data []float32, bins []int32) ChannelReport {
	r := ChannelReport{Channel: channel}
	if len(data) == 0 {
		return r
	}
	r.Forward = stats.NewStats(data, stats.DefaultSamples)
	stats.Histogram(data, fitMin, fitMax, bins)
	peak, _ := stats.GetPeak(bins, fitMin, fitMax)
	mu, sigma, err := stats.FitNormal(bins, fitMin, fitMax, peak, r.Forward.StdDev)
	if err != nil {
		fmt.Fprintf(w, "%s: Forward %s: %v; normal fit failed: %v\n", label, channel, r.Forward, err)
		return r
	}
	r.FitMu, r.FitSigma = mu, sigma
	fmt.Fprintf(w, "%s: Forward %s: %v; fit mu %.4f sigma %.4f (target %.4f, %.4f)\n",
		label, channel, r.Forward, mu, sigma, gauss.Mu, gauss.Sigma)
	return r
}

// Logs statistics of the transform input and output, including a normal fit of the forward
// histogram, and returns them
func report(w io.Writer, label string, ch *histo.Channels, res *histo.Result) []ChannelReport {
	in := reportInput(w, label, ch)
	reports := make([]ChannelReport, 3)
	bins := make([]int32, fitBins)
	for i := range reports {
		reports[i] = forwardReport(w, label, channelNames[i], res.Forward[i], bins)
		reports[i].Input = in[i]
	}
	if res.LUTSize > 0 {
		mid := res.LUTSize / 2
		fmt.Fprintf(w, "%s: LUT with %d entries, median color %s\n", label, res.LUTSize,
			stats.ColorHex(res.LUT[3*mid], res.LUT[3*mid+1], res.LUT[3*mid+2]))
	}
	return reports
}

// Logs statistics and normal fits of a forward-transformed image read back from FITS
func reportFITS(w io.Writer, label string, img *fits.Image) ([]ChannelReport, error) {
	if len(img.Naxisn) != 3 || img.Naxisn[2] != 3 {
		return nil, fmt.Errorf("%w: expected 3 color planes, got %s", ErrUnknownFormat, img.DimensionsToString())
	}
	plane := int(img.Naxisn[0]) * int(img.Naxisn[1])
	reports := make([]ChannelReport, 3)
	bins := make([]int32, fitBins)
	for i := range reports {
		reports[i] = forwardReport(w, label, channelNames[i], img.Data[i*plane:(i+1)*plane], bins)
	}
	if mu, ok := img.Header.Floats["GAUSSMU"]; ok {
		fmt.Fprintf(w, "%s: Written with target mu %.4f sigma %.4f, LUT size %d\n",
			label, mu, img.Header.Floats["GAUSSSIG"], img.Header.Ints["LUTSIZE"])
	}
	return reports, nil
}
