// Package calm converts panics into classified errors carrying a stack trace.
package calm

import (
	"fmt"

	"github.com/datapipe-labs/dp-go-common/xerrors"
	"github.com/datapipe-labs/dp-go-common/xerrors/errclass"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

// depth of stack to skip so that the trace from a recovered panic
// does not include the deferred recovery function itself.
const panicStackDepth = 3

// Unpanic executes f, catching any panic and returning it as an error with a stack trace.
// WARNING: panics in goroutines spawned by f cannot be recovered here; those
// goroutines must be guarded separately.
func Unpanic(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e := fmt.Errorf("panic: %v", r)
			e = xerrors.Attach(stacktrace.Capture(panicStackDepth, true), e)
			err = errclass.Mark(e, errclass.Panic)
		}
	}()

	return f()
}
