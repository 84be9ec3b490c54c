// Package logging provides categorized, zap-backed logging for the campaign pipeline.
// Every subsystem asks for its own named logger with Get; the root logger is
// installed once at startup by the CLI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and shutdown
	CategoryConfig   Category = "config"   // Configuration and credentials
	CategoryValidate Category = "validate" // Campaign schema validation
	CategoryAssets   Category = "assets"   // Asset resolution
	CategoryLayout   Category = "layout"   // Output folder planning
	CategoryWorkflow Category = "workflow" // Pipeline orchestration
	CategoryGemini   Category = "gemini"   // Generative API calls
	CategorySync     Category = "sync"     // Cloud storage sync
	CategoryReport   Category = "report"   // Report generation
	CategoryWatcher  Category = "watcher"  // Input folder watcher
	CategoryRunner   Category = "runner"   // Serial run queue
	CategoryAPI      Category = "api"      // HTTP control surface
	CategoryLedger   Category = "ledger"   // Run history store
)

// Options configures the root logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	File   string // optional extra output path
}

// Logger wraps a sugared zap logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	rootMu  sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*Logger)
)

// New builds a zap logger from options without installing it.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(opts.Format, "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	return cfg.Build()
}

// SetRoot installs l as the parent of every category logger.
// Passing nil installs a no-op logger.
func SetRoot(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	rootMu.Lock()
	defer rootMu.Unlock()
	root = l
	loggers = make(map[Category]*Logger)
}

// Root returns the installed root logger.
func Root() *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Sync flushes the root logger.
func Sync() {
	_ = Root().Sync()
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	rootMu.RLock()
	if l, ok := loggers[category]; ok {
		rootMu.RUnlock()
		return l
	}
	rootMu.RUnlock()

	rootMu.Lock()
	defer rootMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    root.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a structured child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// Convenience helpers for the hot categories.

func Workflow(format string, args ...interface{})      { Get(CategoryWorkflow).Info(format, args...) }
func WorkflowDebug(format string, args ...interface{}) { Get(CategoryWorkflow).Debug(format, args...) }
func Gemini(format string, args ...interface{})        { Get(CategoryGemini).Info(format, args...) }
func GeminiDebug(format string, args ...interface{})   { Get(CategoryGemini).Debug(format, args...) }
func WatcherDebug(format string, args ...interface{})  { Get(CategoryWatcher).Debug(format, args...) }

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
