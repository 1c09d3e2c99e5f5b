// Package logging provides structured logging for the flashT5
// pre-training pipeline on top of log/slog. Every pipeline stage logs
// through a component-tagged logger so interleaved output from the
// ingest, preprocessing and training stages stays attributable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted.
	Level slog.Level

	// Output receives log lines; defaults to stderr.
	Output io.Writer

	// JSON selects the JSON handler over the text handler.
	JSON bool

	// AddSource annotates entries with file:line.
	AddSource bool
}

// Logger wraps slog.Logger with a runtime-adjustable level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

var (
	defaultLogger *Logger
	initOnce      sync.Once
)

// Init builds the process-wide logger. A nil config selects text
// output on stderr at info level. Init also installs the logger as the
// slog default so third-party slog users land in the same stream.
func Init(cfg *Config) {
	if cfg == nil {
		cfg = &Config{}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := &slog.LevelVar{}
	level.Set(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	}

	defaultLogger = &Logger{Logger: slog.New(h), level: level}
	slog.SetDefault(defaultLogger.Logger)
}

// Default returns the process-wide logger, initializing it lazily.
func Default() *Logger {
	initOnce.Do(func() {
		if defaultLogger == nil {
			Init(nil)
		}
	})
	return defaultLogger
}

// SetLevel adjusts the emitted level at runtime.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// WithComponent tags every entry with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name), level: l.level}
}

// Package-level shortcuts on the default logger.

func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// Component loggers, one per pipeline stage.

func IngestLogger() *Logger     { return Default().WithComponent("ingest") }
func PreprocessLogger() *Logger { return Default().WithComponent("preprocess") }
func DatasetLogger() *Logger    { return Default().WithComponent("dataset") }
func CollateLogger() *Logger    { return Default().WithComponent("collate") }
func TrainLogger() *Logger      { return Default().WithComponent("train") }

// Err renders an error as a string attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Duration names an elapsed-time attribute.
func Duration(name string, d time.Duration) slog.Attr {
	return slog.Duration(name, d)
}

// Count names an integer count attribute.
func Count(name string, n int64) slog.Attr {
	return slog.Int64(name, n)
}

// Flow groups the identifying fields of one flow record.
func Flow(index, packets, tokens int) slog.Attr {
	return slog.Group("flow",
		slog.Int("index", index),
		slog.Int("packets", packets),
		slog.Int("tokens", tokens))
}

// Batch groups the shape fields of one collated batch.
func Batch(size, inputLen, labelsLen int) slog.Attr {
	return slog.Group("batch",
		slog.Int("size", size),
		slog.Int("input_len", inputLen),
		slog.Int("labels_len", labelsLen))
}

// Timer logs msg with the elapsed time when the returned func runs.
func Timer(l *Logger, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		l.Debug(msg, append(args, "elapsed", time.Since(start))...)
	}
}

// LogRuntimeInfo dumps process-level runtime stats, typically once at
// startup of a long-running stage.
func LogRuntimeInfo(l *Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	l.Info("runtime",
		"go_version", runtime.Version(),
		"goroutines", runtime.NumGoroutine(),
		"heap_alloc_mb", m.HeapAlloc/1024/1024,
		"num_cpu", runtime.NumCPU())
}
