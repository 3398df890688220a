// Package logging builds the structured logger shared by every component.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to w. Verbose output is a human-readable console
// log at debug level; otherwise JSON lines at warn level keep stderr quiet
// next to machine-readable stdout.
func New(w io.Writer, verbose bool) *zap.Logger {
	var (
		encoder zapcore.Encoder
		level   zapcore.Level
	)
	if verbose {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
		level = zapcore.DebugLevel
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.RFC3339TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
		level = zapcore.WarnLevel
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core).Named("runwatch")
}
