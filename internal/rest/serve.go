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

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mlnoga/gausstex/internal/ops"
)

// Response header carrying the ID assigned to a request
const HeaderJobID = "X-Job-Id"

// Settings shared by all request handlers
type Server struct {
	Version string
	Context *ops.Context // Template context. Log is replaced per request
}

// Creates the API router. Middleware is installed ahead of the routes, after recovery
func NewRouter(s *Server, middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware...)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/version", s.getVersion)
			v1.POST("/stats", s.postStats)
			v1.POST("/precompute", s.postPrecompute)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string, s *Server) error {
	r := NewRouter(s, gin.LoggerWithWriter(s.Context.Log))
	return r.Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": s.Version,
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postJobsArgs struct {
	Jobs []*ops.Job `json:"jobs" binding:"required"`
}

// Parses and validates the job list. Writes an error response and returns nil on failure
func bindJobs(c *gin.Context) []*ops.Job {
	var args postJobsArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil
	}
	if len(args.Jobs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": ops.ErrNoInput.Error()})
		return nil
	}
	for _, job := range args.Jobs {
		if job == nil || job.InFile == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": ops.ErrNoInput.Error()})
			return nil
		}
		job.SetDefaults()
		for _, p := range []string{job.InFile, job.OutDir} {
			if p != "" && !ops.IsPathAllowed(p) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %s", ops.ErrPathNotAllowed, p)})
				return nil
			}
		}
		if _, _, _, err := job.OutputNames(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil
		}
	}
	return args.Jobs
}

// Starts a streamed plain text response and returns a context logging into it
func (s *Server) startLog(c *gin.Context) *ops.Context {
	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	header.Set(HeaderJobID, uuid.NewString())
	logWriter.WriteHeader(http.StatusOK)

	ctx := *s.Context
	ctx.Log = &syncWriter{w: logWriter}
	return &ctx
}

// Serializes writes from concurrently running jobs into one response
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *Server) postPrecompute(c *gin.Context) {
	jobs := bindJobs(c)
	if jobs == nil {
		return
	}
	ctx := s.startLog(c)
	if err := printArgs(ctx.Log, "Arguments:\n", "\n", jobs); err != nil {
		fmt.Fprintf(ctx.Log, "Error printing arguments: %s\n", err.Error())
		return
	}

	outs, err := ops.RunAll(jobs, ctx)
	for _, out := range outs {
		if out != nil {
			fmt.Fprintf(ctx.Log, "Wrote %s and %s\n", out.ImageFile, out.LUTFile)
		}
	}
	if err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
	}
	c.Writer.Flush()
}

func (s *Server) postStats(c *gin.Context) {
	jobs := bindJobs(c)
	if jobs == nil {
		return
	}
	ctx := s.startLog(c)
	for _, job := range jobs {
		if _, err := ops.Stats(job, ctx); err != nil {
			fmt.Fprintf(ctx.Log, "error: %s: %s\n", job.InFile, err.Error())
		}
	}
	c.Writer.Flush()
}
