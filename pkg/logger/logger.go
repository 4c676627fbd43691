package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

type LogLevel int32

const (
	LevelInfo LogLevel = iota
	LevelDebug
	LevelTrace
)

// Logger is a leveled printf logger. Children created with Named share the
// parent's level and verbosity, so toggling either on the root affects every
// component logger.
type Logger struct {
	*log.Logger
	opts *levelState
}

type levelState struct {
	level     atomic.Int32
	isVerbose atomic.Bool
}

type Option func(*Logger)

func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.Logger = log.New(w, l.Logger.Prefix(), l.Logger.Flags())
	}
}

func WithPrefix(prefix string) Option {
	return func(l *Logger) {
		l.Logger = log.New(l.Logger.Writer(), prefix, l.Logger.Flags())
	}
}

func WithFlags(flags int) Option {
	return func(l *Logger) {
		l.Logger = log.New(l.Logger.Writer(), l.Logger.Prefix(), flags)
	}
}

func New(options ...Option) *Logger {
	l := &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
		opts:   &levelState{},
	}

	for _, opt := range options {
		opt(l)
	}

	return l
}

// Discard returns a logger that drops everything. Useful as a default when a
// caller passes nil.
func Discard() *Logger {
	return New(WithOutput(io.Discard), WithFlags(0))
}

// Named returns a child logger whose prefix is extended with "[component] ".
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		Logger: log.New(l.Logger.Writer(), l.Logger.Prefix()+"["+component+"] ", l.Logger.Flags()),
		opts:   l.opts,
	}
}

func (l *Logger) SetVerbose(verbose bool) {
	l.opts.isVerbose.Store(verbose)
}

func (l *Logger) SetLevel(level LogLevel) {
	l.opts.level.Store(int32(level))
}

func (l *Logger) Level() LogLevel {
	return LogLevel(l.opts.level.Load())
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.printf("INFO: ", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.printf("WARN: ", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.printf("ERROR: ", format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.opts.isVerbose.Load() || l.Level() >= LevelDebug {
		l.printf("DEBUG: ", format, args...)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) {
	if l.Level() >= LevelTrace {
		l.printf("TRACE: ", format, args...)
	}
}

func (l *Logger) printf(prefix, format string, args ...interface{}) {
	l.Logger.Printf(prefix+format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Logger.Fatalf("FATAL: "+format, args...)
}
