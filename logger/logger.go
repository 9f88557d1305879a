package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
)

func init() {
	// No-op until Initialize so packages can log before main sets things up.
	Logger = zap.NewNop().Sugar()
}

// Options controls how Initialize builds the global logger.
type Options struct {
	// JSON selects the production JSON encoder instead of the console encoder.
	JSON bool
	// Verbosity is the -v count, see VerbosityToLevel.
	Verbosity int
	// Output receives log lines. Defaults to stderr; stdout carries the
	// language server protocol and must never be written to.
	Output io.Writer
}

// Initialize sets up the global logger.
func Initialize(opts Options) error {
	JSONOutput = opts.JSON

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := zap.NewAtomicLevelAt(VerbosityToLevel(opts.Verbosity))

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	Logger = zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr))).Sugar()
	return nil
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
