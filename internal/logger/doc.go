// Package logger provides a leveled logging facility backed by zap.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional worker ID, and message.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Load generator started")
//	logger.Info("worker-1", "Load changed to %.1f%%", 75.0)
//	logger.Error("worker-1", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-1", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// Logging is delegated to a zap core and is safe for concurrent use.
package logger
