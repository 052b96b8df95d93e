// Package logger provides the structured logging interface used across sgsync.
//
// It wraps zerolog with a small interface so components can take a Logger,
// tests can capture messages with NewTestLogger, and silent callers can use
// NewNopLogger. Console output goes to stderr; stdout is kept for command
// results such as the removal list.
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Sync finished", map[string]interface{}{
//	    "giveaways": 12,
//	    "pages":     40,
//	})
//
// Setting Logging.File additionally appends JSON lines to that file, and
// Logging.Format "json" switches the console to JSON as well.
package logger
