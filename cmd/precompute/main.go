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


package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	nl "github.com/mlnoga/gausstex/internal"
	"github.com/mlnoga/gausstex/internal/ops"
	"github.com/mlnoga/gausstex/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var in = flag.String("in", "", "read input texture from `file`. Further files or patterns may follow the command")
var out = flag.String("out", ops.DefaultOutDir, "write outputs to `directory`. If not a directory, its parent is used")
var imgPrefix = flag.String("imgPrefix", "", "file name of the Gaussianized image without extension, default <input>-gaussian")
var lutPrefix = flag.String("lutPrefix", "", "file name of the inverse LUT without extension, default <input>-lut")
var lutSize = flag.Int("lutSize", 0, "entries per channel in the inverse LUT, 0=image width")
var format = flag.String("format", ops.DefaultFormat, "image output format, one of tif, fits or fits.gz")
var compression = flag.String("compression", "packbits", "TIFF compression, one of packbits, deflate or none")
var preview = flag.String("preview", "", "also write an 8bit preview of the Gaussianized image, one of jpg, tif or blank for none")

var threads = flag.Int("threads", runtime.GOMAXPROCS(0), "number of worker threads per job")
var jobs = flag.Int("jobs", 1, "number of input files processed concurrently")
var log = flag.String("log", "", "also save log output to `file`")

var addr = flag.String("addr", ":8080", "listen on this address for the serve command")
var chroot = flag.String("chroot", "", "chroot into this `directory` before serving, unix only")
var setuid = flag.Int("setuid", -1, "change to this user ID before serving, unix only, -1=don't")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(nl.LogWriter(), `Gausstex Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (run|stats|serve|legal|version|help) (img0.png ... imgn.png)

Commands:
  run     Gaussianize input textures and write inverse LUTs (default if -in is given)
  stats   Show input image statistics
  serve   Serve the REST API on -addr
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	err := run()
	nl.LogSync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[%s] Precompute Error: %s\n", filepath.Base(os.Args[0]), err.Error())
		os.Exit(1)
	}
}

func run() error {
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			return fmt.Errorf("unable to open logfile '%s': %w", *log, err)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	} else if *in == "" {
		flag.Usage()
		return nil
	}

	start := time.Now()
	c := ops.NewContext(nl.LogWriter())
	if *threads > 0 {
		c.MaxThreads = *threads
	}
	if *jobs > 0 {
		c.MaxJobs = *jobs
	}

	var err error
	switch cmd {
	case "run":
		err = cmdRun(args, c)
	case "stats":
		err = cmdStats(args, c)
	case "serve":
		err = cmdServe(c)
	case "legal":
		cmdLegal()
		return nil
	case "version":
		nl.LogPrintln("Version", version)
		return nil
	case "help", "?":
		flag.Usage()
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command '%s'", cmd)
	}
	if err != nil {
		return err
	}

	nl.LogPrintf("Done after %v\n", time.Since(start))
	return writeMemProfile()
}

func writeMemProfile() error {
	if *memprofile == "" {
		return nil
	}
	f, err := os.Create(*memprofile)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return nil
}

// Collects -in and globbed positional arguments into jobs configured from the flags
func parseJobs(args []string) ([]*ops.Job, error) {
	var patterns []string
	if *in != "" {
		patterns = append(patterns, *in)
	}
	patterns = append(patterns, args...)
	if len(patterns) == 0 {
		return nil, ops.ErrNoInput
	}
	fileNames, err := ops.ExpandPatterns(patterns)
	if err != nil {
		return nil, err
	}
	if len(fileNames) > 1 && (*imgPrefix != "" || *lutPrefix != "") {
		return nil, errors.New("-imgPrefix and -lutPrefix require a single input file")
	}

	res := make([]*ops.Job, len(fileNames))
	for i, fileName := range fileNames {
		j := ops.NewJob(fileName)
		j.OutDir = *out
		j.ImgPrefix = *imgPrefix
		j.LUTPrefix = *lutPrefix
		j.LUTSize = *lutSize
		j.Format = *format
		j.Compression = *compression
		j.Preview = *preview
		if _, _, _, err := j.OutputNames(); err != nil {
			return nil, err
		}
		res[i] = j
	}
	return res, nil
}

func cmdRun(args []string, c *ops.Context) error {
	jobs, err := parseJobs(args)
	if err != nil {
		return err
	}
	nl.LogPrintf("Using %d threads per job and %d concurrent jobs on %s\n", c.MaxThreads, c.MaxJobs, c.CPU)
	outs, err := ops.RunAll(jobs, c)
	for _, o := range outs {
		if o == nil {
			continue
		}
		nl.LogPrintf("Wrote %s and %s\n", o.ImageFile, o.LUTFile)
		if o.PreviewFile != "" {
			nl.LogPrintf("Wrote preview %s\n", o.PreviewFile)
		}
	}
	return err
}

func cmdStats(args []string, c *ops.Context) error {
	jobs, err := parseJobs(args)
	if err != nil {
		return err
	}
	var errs []error
	for _, j := range jobs {
		reports, err := ops.Stats(j, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.InFile, err))
			continue
		}
		m, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return err
		}
		nl.LogPrintf("%s\n", string(m))
	}
	return errors.Join(errs...)
}

func cmdServe(c *ops.Context) error {
	if err := rest.MakeSandbox(*chroot, *setuid, c.Log); err != nil {
		return err
	}
	nl.LogPrintf("Serving REST API on %s\n", *addr)
	return rest.Serve(*addr, &rest.Server{Version: version, Context: c})
}
