// Package logger provides structured logging for reactkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. Run and stream IDs
// stored with ContextWith are attached by WithContext.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("hotstream").WithFields(logger.Fields(logger.FieldStream, "ticks"))
//	log.Info("stream started")
package logger
