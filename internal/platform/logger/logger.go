// Package logger constructs the zap logger every core component logs
// through, via the EventHandler adapter the rest of the tree depends on
// instead of a concrete logging library.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a service-tagged *zap.SugaredLogger: JSON-encoded production
// output by default, or a human-readable console encoder when NODE_ENV is
// set to "development".
func New(service string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if os.Getenv("NODE_ENV") == "development" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(config)
	} else {
		encoder = zapcore.NewJSONEncoder(config)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapcore.DebugLevel)
	log := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", service))

	return log.Sugar(), nil
}

// Adapt wraps a *zap.SugaredLogger as the EventHandler shape core
// components take (func(format string, v ...any)), so those packages stay
// decoupled from any concrete logging library.
func Adapt(log *zap.SugaredLogger) func(format string, v ...any) {
	return func(format string, v ...any) {
		log.Infof(format, v...)
	}
}
