// Package logging builds the zap loggers used by the session layer and
// the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures New.
type Option func(*options)

type options struct {
	level       zapcore.Level
	development bool
	out         io.Writer
	fields      []zap.Field
}

// WithLevel sets the minimum level by name ("debug", "info", ...).
// Unknown names are reported by New.
func WithLevel(level string) Option {
	return func(o *options) {
		if l, err := zapcore.ParseLevel(level); err == nil {
			o.level = l
		} else {
			o.level = zapcore.InvalidLevel
		}
	}
}

// WithDevelopment switches to the console encoder with colored levels.
func WithDevelopment(dev bool) Option {
	return func(o *options) { o.development = dev }
}

// WithOutput redirects log output, stderr by default.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithFields adds fields to every entry.
func WithFields(fields ...zap.Field) Option {
	return func(o *options) { o.fields = append(o.fields, fields...) }
}

// New builds a logger. Production loggers write JSON, development ones a
// human readable console format.
func New(opts ...Option) (*zap.Logger, error) {
	o := options{level: zapcore.InfoLevel, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.level == zapcore.InvalidLevel {
		return nil, fmt.Errorf("logging: invalid level")
	}

	var enc zapcore.Encoder
	if o.development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(o.out), zap.NewAtomicLevelAt(o.level))
	zopts := []zap.Option{zap.AddCaller()}
	if len(o.fields) > 0 {
		zopts = append(zopts, zap.Fields(o.fields...))
	}
	return zap.New(core, zopts...), nil
}

// ValidLevel reports whether level is a level name New accepts.
func ValidLevel(level string) bool {
	_, err := zapcore.ParseLevel(level)
	return err == nil
}
