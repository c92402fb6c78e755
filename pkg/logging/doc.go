// Package logging provides a process-wide structured logger for zonedb.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. All subsystems
// should obtain a logger through this package rather than constructing their
// own slog.Logger values, so that log level and output destination are
// controlled from a single place.
//
// # Initialisation
//
// Call Init (or InitDefault for sensible defaults) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, OutputPath: "/var/log/zonedb/engine.log"}); err != nil {
//	    log.Fatal(err)
//	}
//
// File output is rotated by lumberjack according to MaxSizeMB, MaxBackups and
// MaxAgeDays. InitDefault writes WARN-level logs to stderr without a log file.
//
// # Retrieving the logger
//
//	logger := logging.GetLogger()
//	logger.Info("database opened", "db", desc)
//
// If GetLogger is called before Init, a default stderr logger is created
// lazily (via sync.Once) so that packages that log during init are safe.
//
// # Context helpers
//
// Several helpers return child loggers pre-populated with structured fields:
//
//	log := logging.WithZone(abs)        // adds zone field
//	log := logging.WithOp("put")        // adds op field
//	log := logging.WithDB(db.String())  // adds db field
//	log := logging.WithComponent("vm")  // adds component field
package logging
