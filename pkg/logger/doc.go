// Package logger provides the structured logging interface used across imgharvest.
//
// It wraps zerolog and adds:
//   - Leveled logging with chained fields (WithField, WithFields, WithError)
//   - Pretty console output when attached to a terminal, JSON otherwise
//   - An optional append-only log file
//   - A global logger for packages that are not handed one explicitly
//   - TestLogger, which captures messages for assertions
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("url", listingURL).Info("Fetching listing")
//
// Components accept a Logger in their constructors and fall back to
// GetLogger() when given nil.
package logger
