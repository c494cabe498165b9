package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic logs a recovered panic value with its stack. It must be called
// directly from a deferred function, with the value of recover():
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        observability.RecoverPanic(logger, "handler", r)
//	    }
//	}()
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string, r interface{}) {
	if r == nil {
		return
	}
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}

// PanicError converts a recovered value into an error, nil when r is nil
func PanicError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
