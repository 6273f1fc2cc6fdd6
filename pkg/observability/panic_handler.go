package observability

import (
	"runtime/debug"
)

// RecoverPanic is a defer helper for background jobs. It swallows any
// in-flight panic and logs it at error level with the panic value, the
// stack, and a short context label; the panic is not re-raised, so a bad
// sweep pass cannot take down the scheduler.
//
//	defer observability.RecoverPanic(logger, "rate limit sweep")
func RecoverPanic(logger *Logger, context string) {
	r := recover()
	if r == nil {
		return
	}
	logger.WithFields(map[string]interface{}{
		"panic":   r,
		"stack":   string(debug.Stack()),
		"context": context,
	}).Error("PANIC recovered")
}
