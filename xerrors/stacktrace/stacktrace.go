// Package stacktrace captures program stack traces via the go runtime.
package stacktrace

import (
	"regexp"
	"runtime"
	"strings"
)

const (
	maxFrames     = 50
	runtimePrefix = "runtime."
	testingPrefix = "testing."
)

// matches source files belonging to the go runtime package,
// eg `/pkg/mod/golang.org/toolchain@v0.0.1-go1.25.0.linux-amd64/src/runtime/panic.go`
var runtimeRegex = regexp.MustCompile(`go[^/]*/src/runtime/[^.]+\.go`)

// matches source files belonging to the go testing package
var testingRegex = regexp.MustCompile(`go[^/]*/src/testing/[^.]+\.go`)

// Frame holds human-readable information about one frame of a stack trace.
type Frame struct {
	File       string `json:"source"`
	LineNumber int    `json:"line"`
	Function   string `json:"func"`
}

// Trace is a program stack trace as a series of frames.
type Trace []Frame

// Capture records the current stack trace.
// skipFrames is the number of frames to drop; 1 makes Capture itself the first frame.
// trimRuntime drops frames belonging to the go runtime and testing packages.
func Capture(skipFrames int, trimRuntime bool) Trace {
	pc := make([]uintptr, maxFrames)
	n := runtime.Callers(skipFrames, pc)

	var trace Trace
	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		if trimRuntime {
			if strings.HasPrefix(frame.Function, runtimePrefix) && runtimeRegex.MatchString(frame.File) {
				continue
			}
			if strings.HasPrefix(frame.Function, testingPrefix) && testingRegex.MatchString(frame.File) {
				continue
			}
		}
		trace = append(trace, Frame{
			File:       frame.File,
			LineNumber: frame.Line,
			Function:   frame.Function,
		})
	}

	return trace
}
