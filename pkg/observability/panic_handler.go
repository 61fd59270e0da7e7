package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the full stack
// trace. Call it in a defer:
//
//	func sweepLoop() {
//	    defer observability.RecoverPanic(logger, "retention sweep")
//	    // ...
//	}
//
// After logging, the panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, and then runs
// the callback. The callback only runs when a panic actually occurred,
// which makes it the place to emit an error response or unblock a
// waiting goroutine:
//
//	defer observability.RecoverPanicWithCallback(logger, "http handler", func() {
//	    w.WriteHeader(http.StatusInternalServerError)
//	})
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}
