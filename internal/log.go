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

package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Singleton log writer. Writes to stdout, and optionally to a size-capped, rotated file.
// Does not add prefixes, or force newlines.

// Rotation settings for the log file
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

var logMutex sync.Mutex

// The optional additional file to log into
var logFile *bufio.Writer
var logFileRotating *lumberjack.Logger

// Enables logging to file. A previously opened log file is flushed and closed
func LogAlsoToFile(fileName string) (err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if err = closeLogFile(); err != nil {
		return err
	}
	logFileRotating = &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}
	// start every run with a fresh file, keeping the previous one as backup
	if err = logFileRotating.Rotate(); err != nil {
		logFileRotating = nil
		return err
	}
	logFile = bufio.NewWriter(logFileRotating)
	return nil
}

func closeLogFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Flush()
	if errClose := logFileRotating.Close(); err == nil {
		err = errClose
	}
	logFile, logFileRotating = nil, nil
	return err
}

// The writer behind all Log functions, for components taking a logWriter argument
func LogWriter() io.Writer {
	return logWriter{}
}

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	n, err = os.Stdout.Write(p)
	if err != nil || logFile == nil {
		return n, err
	}
	return logFile.Write(p)
}

func LogPrint(args ...interface{}) (n int, err error) {
	return fmt.Fprint(logWriter{}, args...)
}

func LogPrintln(args ...interface{}) (n int, err error) {
	return fmt.Fprintln(logWriter{}, args...)
}

func LogPrintf(format string, args ...interface{}) (n int, err error) {
	return fmt.Fprintf(logWriter{}, format, args...)
}

func LogSync() {
	logMutex.Lock()
	defer logMutex.Unlock()
	if logFile != nil {
		logFile.Flush()
	}
}
