package stacktrace

import (
	"errors"
	"sync/atomic"

	"github.com/datapipe-labs/dp-go-common/xerrors"
)

// depth of stack to skip so that callers of Wrap don't see Wrap itself.
const wrapStackDepth = 4

// Disabled turns Wrap into a no-op when set to true.
var Disabled atomic.Bool

// Wrap attaches the stack trace at the call site to the error.
// An error that already carries a trace is left untouched.
// For joined errors, each child is wrapped individually.
func Wrap(err error) error {
	if Disabled.Load() || err == nil {
		return err
	}

	if children := xerrors.Split(err); len(children) > 1 {
		wrapped := make([]error, len(children))
		for i, child := range children {
			wrapped[i] = Wrap(child)
		}
		return errors.Join(wrapped...)
	}

	return wrapSingle(err)
}

func wrapSingle(err error) error {
	if _, ok := xerrors.Lookup[Trace](err); ok {
		return err
	}
	return xerrors.Attach(Capture(wrapStackDepth, true), err)
}

// Extract returns the Trace carried by the error, or nil.
func Extract(err error) Trace {
	trace, ok := xerrors.Lookup[Trace](err)
	if !ok {
		return nil
	}
	return trace
}
