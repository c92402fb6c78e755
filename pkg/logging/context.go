package logging

import (
	"log/slog"
)

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("allocator")
//	log.Debug("extent allocated", "handle", h)
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithZone creates a logger with zone context.
// Useful for zone cache and allocator operations.
//
// Example:
//
//	log := logging.WithZone(abs)
//	log.Debug("zone loaded", "dirty", false)
func WithZone(zone any) *slog.Logger {
	return GetLogger().With("zone", zone)
}

// WithOp creates a logger with micro-program context.
//
// Example:
//
//	log := logging.WithOp("put")
//	log.Warn("operation failed", "code", code)
func WithOp(op string) *slog.Logger {
	return GetLogger().With("op", op)
}

// WithDB creates a logger bound to a database descriptor.
func WithDB(db any) *slog.Logger {
	return GetLogger().With("db", db)
}
