// Package logging provides structured logging for Smart Office Core.
//
// It wraps log/slog with the service's defaults: every record carries
// service and version attributes, output is JSON for production or text
// for development, and level filtering follows the logging section of
// config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to connect", "error", err)
//
// Before configuration is available, use logging.Default().
//
// Do not log secrets: MQTT passwords and InfluxDB tokens stay out of
// log fields entirely.
package logging
