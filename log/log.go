// Package log provides slog loggers backed by zerolog with standard service metadata.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/rs/zerolog"
	slogcommon "github.com/samber/slog-common"
	slogzerolog "github.com/samber/slog-zerolog/v2"

	"github.com/datapipe-labs/dp-go-common/log/identity"
	"github.com/datapipe-labs/dp-go-common/version"
	"github.com/datapipe-labs/dp-go-common/xerrors"
	"github.com/datapipe-labs/dp-go-common/xerrors/errclass"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

const (
	ErrorKey      = "error"
	SourceKey     = "source"
	StackTraceKey = "stacktrace"
	ErrClassKey   = "class"
)

var logLevel = &slog.LevelVar{}

// SetLogLevel changes the level of all loggers created by NewLogger.
func SetLogLevel(level string) error {
	if level != "" {
		return logLevel.UnmarshalText([]byte(level))
	}
	return nil
}

// ErrAttr is a helper for logging error values.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

// NewTestLogger creates a new logger for testing.
// NOTE: Since this logger uses the testing t.Log method,
// it will only log when the test fails. Additionally,
// it will cause a panic if the logger is called after the
// test has completed. This can be helpful for finding race conditions.
func NewTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slogt.New(t, slogt.JSON()).With(slog.String("test", t.Name()))
}

// NewLogger creates a new slog logger backed by zerolog with some standard defaults.
func NewLogger(serviceName string) *slog.Logger {
	// ms granularity should be sufficient
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	identity.SetServiceName(serviceName)
	name, instanceID := identity.WhoAmI()

	zlogger := zerolog.
		New(os.Stdout).With().                     // log to stdout not stderr
		Timestamp().                               // include timestamp
		Str("service", name).                      // include the service name
		Str("instance", instanceID).               // include unique id for instance
		Str("git_commit", version.Info.GitCommit). // include hash of last git commit
		Str("git_branch", version.Info.GitBranch). // include name of the branch when built
		Str("version", version.Info.Version).      // include version information
		Logger()

	return slog.New(slogzerolog.Option{
		Converter: errorAwareConverter,
		Level:     logLevel,
		Logger:    &zlogger,
	}.NewZerologHandler())
}

// errorAwareConverter mirrors slogcommon.DefaultConverter, except that error
// attributes are expanded with stack trace, class and context information.
func errorAwareConverter(addSource bool, replaceAttr func(groups []string, a slog.Attr) slog.Attr, loggerAttr []slog.Attr, groups []string, record *slog.Record) map[string]any {
	attrs := slogcommon.AppendRecordAttrsToAttrs(loggerAttr, groups, record)

	attrs = expandErrors(attrs)
	if addSource {
		attrs = append(attrs, slogcommon.Source(SourceKey, record))
	}
	attrs = slogcommon.ReplaceAttrs(replaceAttr, []string{}, attrs...)

	return slogcommon.AttrsToMap(attrs...)
}

// expandErrors looks for an "error" attribute and, if found, supplements it
// with an "error_context" group holding the error's stack trace, class and
// any attached context attributes. Joined errors produce one numbered group
// per child error.
func expandErrors(attrs []slog.Attr) []slog.Attr {
	var groupedAttrs [][]any
	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 1 || a.Key != ErrorKey {
			return a
		}

		err, ok := a.Value.Any().(error)
		if !ok || err == nil {
			return a
		}

		children := xerrors.Split(err)
		groupedAttrs = make([][]any, len(children))
		errorStrings := make([]string, 0, len(children))
		for i, child := range children {
			groupedAttrs[i] = append(groupedAttrs[i], slog.String(ErrorKey, child.Error()))
			errorStrings = append(errorStrings, child.Error())

			if trace := stacktrace.Marshal(child); trace != nil {
				groupedAttrs[i] = append(groupedAttrs[i], slog.Any(StackTraceKey, trace))
			}

			if class := errclass.GetClass(child); class != errclass.Unknown {
				groupedAttrs[i] = append(groupedAttrs[i], slog.String(ErrClassKey, class.String()))
			}

			for _, attr := range errcontext.Get(child).Attrs() {
				groupedAttrs[i] = append(groupedAttrs[i], attr)
			}
		}

		if len(children) == 1 {
			return slog.String(ErrorKey, err.Error())
		}
		return slog.Any(a.Key, errorStrings)
	}
	results := append(attrs, slogcommon.ReplaceAttrs(replaceAttr, []string{}, attrs...)...)

	switch len(groupedAttrs) {
	case 0:
		return results
	case 1:
		if len(groupedAttrs[0]) > 1 {
			results = append(results, slog.Group("error_context", groupedAttrs[0]...))
		}
		return results
	}

	groups := make([]slog.Attr, len(groupedAttrs))
	for i, group := range groupedAttrs {
		groups[i] = slog.Group(fmt.Sprintf("error_%d", i), group...)
	}
	return append(results, slog.Any("error_context", groups))
}
