package stacktrace

import "strconv"

const (
	frameFileKey     = "source"
	frameLineKey     = "line"
	frameFunctionKey = "func"
)

// Marshal formats the error's stack trace for structured logging.
// It returns nil if the error carries no trace.
func Marshal(err error) any {
	trace := Extract(err)
	if trace == nil {
		return nil
	}

	out := make([]map[string]string, 0, len(trace))
	for _, frame := range trace {
		out = append(out, map[string]string{
			frameFileKey:     frame.File,
			frameLineKey:     strconv.Itoa(frame.LineNumber),
			frameFunctionKey: frame.Function,
		})
	}
	return out
}
