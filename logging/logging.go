package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"bitbucket.org/kleinnic74/pinphotos/consts"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKeyType string

const (
	loggerKey = loggerKeyType("logger")

	defaultMemoryLines = 1000
)

// Options configures the sinks of the root logger
type Options struct {
	// File is the path of the JSON log file, no file logging if empty
	File string
	// LogglyToken enables forwarding of logs to loggly
	LogglyToken string
	// MemoryLines is the size of the in-memory ring buffer served on /logs
	MemoryLines int
}

var (
	rootLogger *zap.Logger
	memory     LogsExporter
	closers    []io.Closer
)

func init() {
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr), zapcore.InfoLevel)
	rootLogger = zap.New(console)
}

// Init replaces the root logger by one writing to the sinks defined in the given options.
// Loggers already derived from the previous root logger are not affected.
func Init(o Options) error {
	devmode := consts.IsDevMode()
	debugFilter := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.DebugLevel
	})
	infoFilter := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.InfoLevel
	})

	var jsonEncoder zapcore.Encoder
	if devmode {
		jsonEncoder = zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		jsonEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	var fileFilter zap.LevelEnablerFunc
	var cores []zapcore.Core
	if devmode {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), debugFilter))
		fileFilter = debugFilter
	} else {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), infoFilter))
		fileFilter = infoFilter
	}

	if o.File != "" {
		logfile, err := os.OpenFile(o.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		closers = append(closers, logfile)
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.Lock(logfile), fileFilter))
	}

	lines := o.MemoryLines
	if lines <= 0 {
		lines = defaultMemoryLines
	}
	mem := NewMemoryLogger(lines)
	memory = mem.(LogsExporter)
	cores = append(cores, zapcore.NewCore(jsonEncoder, mem, fileFilter))

	if o.LogglyToken != "" {
		loggly := NewLogglySink(o.LogglyToken)
		closers = append(closers, loggly)
		cores = append(cores, zapcore.NewCore(NewLogglyEncoder(), loggly, fileFilter))
	}

	rootLogger = zap.New(zapcore.NewTee(cores...))
	rootLogger.With(zap.Bool("devmode", devmode)).Info("Logging initialized")
	return nil
}

// Close flushes the root logger and releases the sinks opened by Init
func Close() {
	rootLogger.Sync()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
	closers = nil
}

// Dump writes the lines held in memory to w, newest first if reverse is set
func Dump(w io.Writer, reverse bool) error {
	if memory == nil {
		return nil
	}
	return memory.Export(w, reverse)
}

// From returns the logger of the current context, if no logger is available, returns the root logger
func From(ctx context.Context) *zap.Logger {
	l := ctx.Value(loggerKey)
	if l == nil {
		return rootLogger
	}
	return l.(*zap.Logger)
}

func SubFrom(ctx context.Context, name string) (*zap.Logger, context.Context) {
	logger := From(ctx).Named(name)
	return logger, Context(ctx, logger)
}

func Context(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = rootLogger
	}
	return context.WithValue(ctx, loggerKey, logger)
}

func FromWithNameAndFields(ctx context.Context, name string, fields ...zapcore.Field) (*zap.Logger, context.Context) {
	logger := From(ctx).With(fields...).Named(name)
	ctx = Context(ctx, logger)
	return logger, ctx
}

func FromWithFields(ctx context.Context, fields ...zapcore.Field) (*zap.Logger, context.Context) {
	logger := From(ctx).With(fields...)
	ctx = Context(ctx, logger)
	return logger, ctx
}
