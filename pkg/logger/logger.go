package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar = zap.NewNop().Sugar()

// Option configures Init
type Option func(*options)

type options struct {
	writers []io.Writer
	level   zapcore.Level
}

// WithWriter adds an extra sink next to stdout
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writers = append(o.writers, w)
	}
}

// WithLevel sets the minimum level from its text form ("debug", "info", ...).
// Unknown values keep the default info level.
func WithLevel(level string) Option {
	return func(o *options) {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(level)); err == nil {
			o.level = l
		}
	}
}

// Init builds the process wide JSON logger
func Init(opts ...Option) *zap.SugaredLogger {
	o := options{
		writers: []io.Writer{os.Stdout},
		level:   zapcore.InfoLevel,
	}
	for _, opt := range opts {
		opt(&o)
	}

	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		TimeKey:      "time",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		CallerKey:    "caller",
		EncodeCaller: zapcore.ShortCallerEncoder,
	})

	cores := make([]zapcore.Core, 0, len(o.writers))
	for _, w := range o.writers {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), o.level))
	}

	sugar = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	return sugar
}

// L returns the process logger. Before Init it discards everything.
func L() *zap.SugaredLogger {
	return sugar
}

// Sync flushes buffered entries
func Sync() {
	_ = sugar.Sync()
}
