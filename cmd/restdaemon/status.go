// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bassosimone/restworker/jsondoc"
)

// jobID identifies the job this daemon belongs to.
const jobID = 2350105

// newStatusDocument returns the /status document.
//
// The date and uptime are read at each request, and the self object
// captures a fresh resource usage snapshot.
func newStatusDocument(hostname string, started time.Time, logger *slog.Logger) *jsondoc.Document {
	return jsondoc.New(jsondoc.Object(
		jsondoc.Pair("hostname", jsondoc.Const(hostname)),
		jsondoc.Pair("date", jsondoc.Func(func() string {
			return time.Now().Format(time.ANSIC)
		})),
		jsondoc.Pair("jobid", jsondoc.Const(jobID)),
		jsondoc.Pair("start_time", jsondoc.Const(started.Unix())),
		jsondoc.Pair("end_time", jsondoc.Const(0)),
		jsondoc.Pair("uptime", jsondoc.Func(hostUptime)),
		jsondoc.Pair("self", newSelfValue(logger)),
	))
}

// newSelfDocument returns the /self document.
func newSelfDocument(logger *slog.Logger) *jsondoc.Document {
	return jsondoc.New(newSelfValue(logger))
}

// newSelfValue returns a value describing this process.
//
// The exe and cwd members are empty strings when the lookup fails.
func newSelfValue(logger *slog.Logger) jsondoc.Value {
	return jsondoc.Scoped(func(any) (jsondoc.Value, error) {
		usage, err := getResourceUsage()
		if err != nil {
			return nil, err
		}
		exe := lookupPath(logger, "exe", os.Executable)
		cwd := lookupPath(logger, "cwd", os.Getwd)
		return jsondoc.Object(
			jsondoc.Pair("name", jsondoc.Const(filepath.Base(os.Args[0]))),
			jsondoc.Pair("exe", jsondoc.Const(exe)),
			jsondoc.Pair("cwd", jsondoc.Const(cwd)),
			jsondoc.Pair("pid", jsondoc.Func(os.Getpid)),
			jsondoc.Pair("uid", jsondoc.Func(os.Getuid)),
			jsondoc.Pair("utime", jsondoc.Const(usage.utime.Seconds())),
			jsondoc.Pair("stime", jsondoc.Const(usage.stime.Seconds())),
			jsondoc.Pair("maxrss", jsondoc.Const(usage.maxrss)),
			jsondoc.Pair("nsignals", jsondoc.Const(usage.nsignals)),
			jsondoc.Pair("nvcsw", jsondoc.Const(usage.nvcsw)),
			jsondoc.Pair("nivcsw", jsondoc.Const(usage.nivcsw)),
		), nil
	})
}

// resourceUsage is a snapshot of the process resource usage.
type resourceUsage struct {
	utime, stime                    time.Duration
	maxrss, nsignals, nvcsw, nivcsw int64
}

// lookupPath returns the path returned by fn, or an empty string after
// logging the error when fn fails.
func lookupPath(logger *slog.Logger, name string, fn func() (string, error)) string {
	path, err := fn()
	if err != nil {
		logger.Warn("lookupPath", slog.String("name", name), slog.Any("err", err))
		return ""
	}
	return path
}

// hostUptime returns the host uptime in seconds or -1 if unknown.
func hostUptime() float64 {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return -1
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return -1
	}
	uptime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return -1
	}
	return uptime
}
