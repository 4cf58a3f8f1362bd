// Package logging provides config-driven categorized logging for kongaddon.
// Logs are written to .kongaddon/logs/ with separate files per category.
// Logging is controlled by debug_mode in the logging config - when false, no logs are written.
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
	CategoryBoot     Category = "boot"     // Startup and wiring
	CategoryPrefs    Category = "prefs"    // Preference store reads/writes
	CategoryClassify Category = "classify" // Reference classification
	CategoryRewrite  Category = "rewrite"  // Message rewriting
	CategoryChat     Category = "chat"     // Chat watcher notifications
	CategoryFeatures Category = "features" // Feature registry
	CategoryLayout   Category = "layout"   // Display mode transitions
	CategoryBrowser  Category = "browser"  // Browser automation, DOM events
	CategoryConfig   Category = "config"   // Config load and hot reload
	CategoryRoute    Category = "route"    // Page routing
)

// AllCategories lists every known category.
var AllCategories = []Category{
	CategoryBoot, CategoryPrefs, CategoryClassify, CategoryRewrite, CategoryChat,
	CategoryFeatures, CategoryLayout, CategoryBrowser, CategoryConfig, CategoryRoute,
}

// Options mirrors config.LoggingConfig to avoid circular imports.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger wraps a zap logger with a category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	override  zapcore.Core
)

// Initialize sets up the logging directory under the workspace.
// Should be called once at startup.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	Configure(o)
	logsDir = filepath.Join(workspace, ".kongaddon", "logs")

	if !o.DebugMode {
		return nil // Silent no-op in production mode
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== kongaddon logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", level.Level())
	return nil
}

// Configure applies options at runtime. The level change is visible to
// existing loggers immediately; category toggles apply to new Get calls.
func Configure(o Options) {
	optsMu.Lock()
	opts = o
	optsMu.Unlock()
	level.SetLevel(ParseLevel(o.Level))

	loggersMu.Lock()
	for cat, l := range loggers {
		if !IsCategoryEnabled(cat) {
			l.close()
			delete(loggers, cat)
		}
	}
	loggersMu.Unlock()
}

// ParseLevel maps a config level string to a zap level. Unknown values mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// SetCore routes every category into core, bypassing files and debug mode.
// Passing nil restores file output. Intended for tests and embedding.
func SetCore(core zapcore.Core) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for cat, l := range loggers {
		l.close()
		delete(loggers, cat)
	}
	override = core
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	if override != nil {
		l := &Logger{category: category, sugar: zap.New(override).Named(string(category)).Sugar()}
		loggers[category] = l
		return l
	}

	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	core := zapcore.NewCore(encoder(), zapcore.AddSync(file), level)
	l := &Logger{
		category: category,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
		file:     file,
	}
	loggers[category] = l
	return l
}

func encoder() zapcore.Encoder {
	optsMu.RLock()
	jsonFormat := opts.JSONFormat
	optsMu.RUnlock()

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if jsonFormat {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func (l *Logger) close() {
	if l.sugar != nil {
		_ = l.sugar.Sync()
	}
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying structured fields on every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all log files
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for cat, l := range loggers {
		l.close()
		delete(loggers, cat)
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

func Prefs(format string, args ...interface{}) {
	Get(CategoryPrefs).Info(format, args...)
}

func PrefsDebug(format string, args ...interface{}) {
	Get(CategoryPrefs).Debug(format, args...)
}

func PrefsWarn(format string, args ...interface{}) {
	Get(CategoryPrefs).Warn(format, args...)
}

func Chat(format string, args ...interface{}) {
	Get(CategoryChat).Info(format, args...)
}

func ChatDebug(format string, args ...interface{}) {
	Get(CategoryChat).Debug(format, args...)
}

func ChatWarn(format string, args ...interface{}) {
	Get(CategoryChat).Warn(format, args...)
}

func Layout(format string, args ...interface{}) {
	Get(CategoryLayout).Info(format, args...)
}

func LayoutDebug(format string, args ...interface{}) {
	Get(CategoryLayout).Debug(format, args...)
}

func LayoutWarn(format string, args ...interface{}) {
	Get(CategoryLayout).Warn(format, args...)
}

func Features(format string, args ...interface{}) {
	Get(CategoryFeatures).Info(format, args...)
}

func FeaturesDebug(format string, args ...interface{}) {
	Get(CategoryFeatures).Debug(format, args...)
}

func Browser(format string, args ...interface{}) {
	Get(CategoryBrowser).Info(format, args...)
}

func BrowserDebug(format string, args ...interface{}) {
	Get(CategoryBrowser).Debug(format, args...)
}

func BrowserWarn(format string, args ...interface{}) {
	Get(CategoryBrowser).Warn(format, args...)
}

func BrowserError(format string, args ...interface{}) {
	Get(CategoryBrowser).Error(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
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
