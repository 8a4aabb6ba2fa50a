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
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mlnoga/gausstex/internal/fits"
	"github.com/mlnoga/gausstex/internal/histo"
)

// Runs all jobs, at most c.MaxJobs at a time. Jobs without an ID are assigned one.
// Every job runs to completion even if others fail; the returned error joins all failures.
// Outputs of failed jobs are nil
func RunAll(jobs []*Job, c *Context) ([]*Output, error) {
	if len(jobs) == 0 {
		return nil, ErrNoInput
	}
	outs := make([]*Output, len(jobs))
	errs := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(c.maxJobs())
	for i, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		g.Go(func() error {
			out, err := job.Run(c)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.InFile, err)
				return nil
			}
			outs[i] = out
			return nil
		})
	}
	g.Wait()
	return outs, errors.Join(errs...)
}

// Loads the input of a job and logs its per-channel statistics, without transforming it.
// A FITS input is taken to be a forward-transformed image written by Run, and is checked
// against the target normal distribution instead
func Stats(job *Job, c *Context) ([]ChannelReport, error) {
	if job.InFile == "" {
		return nil, ErrNoInput
	}
	if isFITSFile(job.InFile) {
		img, err := fits.NewImageFromFile(job.InFile, c.Log)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(c.Log, "%s: Loaded %s FITS image from %s\n", job.label(), img.DimensionsToString(), job.InFile)
		return reportFITS(c.Log, job.label(), img)
	}
	img, format, err := LoadImage(job.InFile)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	fmt.Fprintf(c.Log, "%s: Loaded %dx%d %s image from %s\n", job.label(), b.Dx(), b.Dy(), format, job.InFile)
	ch := histo.SplitImage(img, c.MaxThreads)
	in := reportInput(c.Log, job.label(), ch)
	reports := make([]ChannelReport, 3)
	for i := range reports {
		reports[i] = ChannelReport{Channel: channelNames[i], Input: in[i]}
	}
	return reports, nil
}
