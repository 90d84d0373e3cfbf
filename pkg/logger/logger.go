package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/cpcrun/pkg/configuration"
	slogmulti "github.com/samber/slog-multi"
)

// LogLevel definiert die verschiedenen Log-Level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// levelFatal sits above slog.LevelError so handlers keep it.
const levelFatal = slog.LevelError + 4

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return levelFatal
	}
}

// LogArea definiert die verschiedenen Log-Bereiche
type LogArea string

const (
	AreaRunLoop   LogArea = "runloop"
	AreaKeyboard  LogArea = "keyboard"
	AreaSound     LogArea = "sound"
	AreaFileLoad  LogArea = "fileload"
	AreaProgram   LogArea = "program"
	AreaVM        LogArea = "vm"
	AreaSession   LogArea = "session"
	AreaWebSocket LogArea = "websocket"
	AreaStorage   LogArea = "storage"
	AreaAuth      LogArea = "auth"
	AreaConfig    LogArea = "config"
	AreaGeneral   LogArea = "general"
)

var allAreas = []LogArea{
	AreaRunLoop, AreaKeyboard, AreaSound, AreaFileLoad, AreaProgram, AreaVM,
	AreaSession, AreaWebSocket, AreaStorage, AreaAuth, AreaConfig, AreaGeneral,
}

// Logger ist das Hauptlogging-System
type Logger struct {
	enabled     int32              // atomic bool
	level       int32              // atomic LogLevel
	areaEnabled map[LogArea]*int32 // atomic bools per area
	handler     slog.Handler
	file        *rotatingFile
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize initialisiert das globale Logging-System
func Initialize() error {
	var err error
	initOnce.Do(func() {
		globalLogger, err = newLogger()
	})
	return err
}

// newLogger erstellt einen Logger, der in die konfigurierte Datei schreibt
func newLogger() (*Logger, error) {
	l := newAreas()
	l.loadConfig()

	file := &rotatingFile{
		path:          configuration.GetString("Debug", "log_file", "debug.log"),
		maxBytes:      int64(configuration.GetInt("Debug", "max_log_size_mb", 10)) * 1024 * 1024,
		rotationCount: configuration.GetInt("Debug", "log_rotation_count", 3),
	}
	if err := file.open(); err != nil {
		return nil, err
	}
	l.file = file
	l.handler = buildHandler(file, os.Stderr)
	return l, nil
}

// newWriterLogger logs everything to w; WARN and above also go to stderr.
func newWriterLogger(w io.Writer, stderr io.Writer) *Logger {
	l := newAreas()
	l.loadConfig()
	l.handler = buildHandler(w, stderr)
	return l
}

func newAreas() *Logger {
	l := &Logger{areaEnabled: make(map[LogArea]*int32)}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(int32)
	}
	return l
}

// buildHandler fans records out to the main sink and to stderr for WARN+.
func buildHandler(main io.Writer, stderr io.Writer) slog.Handler {
	handlers := []slog.Handler{
		slog.NewTextHandler(main, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: replaceAttr,
		}),
	}
	if stderr != nil {
		handlers = append(handlers, slog.NewTextHandler(stderr, &slog.HandlerOptions{
			Level:       slog.LevelWarn,
			ReplaceAttr: replaceAttr,
		}))
	}
	return slogmulti.Fanout(handlers...)
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String(slog.TimeKey, t.Format("2006-01-02 15:04:05.000"))
		}
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= levelFatal {
			return slog.String(slog.LevelKey, "FATAL")
		}
	}
	return a
}

// loadConfig lädt die Logging-Konfiguration
func (l *Logger) loadConfig() {
	enabled := configuration.GetBool("Debug", "enable_debug_logging", true)
	atomic.StoreInt32(&l.enabled, boolToInt32(enabled))

	level := parseLogLevel(configuration.GetString("Debug", "log_level", "INFO"))
	atomic.StoreInt32(&l.level, int32(level))

	for area, flag := range l.areaEnabled {
		enabled := configuration.GetBool("Debug", fmt.Sprintf("log_%s", string(area)), false)
		atomic.StoreInt32(flag, boolToInt32(enabled))
	}
}

// shouldLog prüft ob ein Log-Eintrag geschrieben werden soll
func (l *Logger) shouldLog(level LogLevel, area LogArea) bool {
	if atomic.LoadInt32(&l.enabled) == 0 {
		return false
	}
	if atomic.LoadInt32(&l.level) > int32(level) {
		return false
	}
	return l.isAreaEnabled(area)
}

func (l *Logger) isAreaEnabled(area LogArea) bool {
	if flag, exists := l.areaEnabled[area]; exists {
		return atomic.LoadInt32(flag) != 0
	}
	return false
}

// loggerFile ist die Quelldatei dieses Pakets; ihre Frames werden übersprungen
var loggerFile = func() string {
	_, file, _, _ := runtime.Caller(0)
	return file
}()

// callerSource liefert Datei:Zeile des ersten Aufrufers außerhalb von logger.go.
// Die Wrapper werden oft eingebettet, darum über die logischen Frames.
func callerSource() string {
	var pcs [16]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != loggerFile {
			return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
		if !more {
			return ""
		}
	}
}

// writeLog schreibt den Log-Eintrag mit der Quelle des Aufrufers
func (l *Logger) writeLog(level LogLevel, area LogArea, format string, args ...interface{}) {
	record := slog.NewRecord(time.Now(), level.slogLevel(), fmt.Sprintf(format, args...), 0)
	if src := callerSource(); src != "" {
		record.AddAttrs(slog.String(slog.SourceKey, src))
	}
	record.AddAttrs(slog.String("area", strings.ToUpper(string(area))))
	_ = l.handler.Handle(context.Background(), record)
}

// Debug schreibt Debug-Logs
func Debug(area LogArea, format string, args ...interface{}) {
	logAt(DEBUG, area, format, args...)
}

// Info schreibt Info-Logs
func Info(area LogArea, format string, args ...interface{}) {
	logAt(INFO, area, format, args...)
}

// Warn schreibt Warning-Logs
func Warn(area LogArea, format string, args ...interface{}) {
	logAt(WARN, area, format, args...)
}

// Error schreibt Error-Logs
func Error(area LogArea, format string, args ...interface{}) {
	logAt(ERROR, area, format, args...)
}

// Fatal schreibt Fatal-Logs und beendet das Programm
func Fatal(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.writeLog(FATAL, area, format, args...)
	}
	log.Fatalf("[FATAL] [%s] %s", strings.ToUpper(string(area)), fmt.Sprintf(format, args...))
}

func logAt(level LogLevel, area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(level, area) {
		globalLogger.writeLog(level, area, format, args...)
	}
}

// Convenience-Funktionen für häufig verwendete Bereiche

// RunLoop Logging
func RunLoopDebug(format string, args ...interface{}) { Debug(AreaRunLoop, format, args...) }
func RunLoopInfo(format string, args ...interface{})  { Info(AreaRunLoop, format, args...) }
func RunLoopWarn(format string, args ...interface{})  { Warn(AreaRunLoop, format, args...) }
func RunLoopError(format string, args ...interface{}) { Error(AreaRunLoop, format, args...) }

// WebSocket Logging
func WebSocketDebug(format string, args ...interface{}) { Debug(AreaWebSocket, format, args...) }
func WebSocketInfo(format string, args ...interface{})  { Info(AreaWebSocket, format, args...) }
func WebSocketWarn(format string, args ...interface{})  { Warn(AreaWebSocket, format, args...) }
func WebSocketError(format string, args ...interface{}) { Error(AreaWebSocket, format, args...) }

// Auth Logging
func AuthDebug(format string, args ...interface{}) { Debug(AreaAuth, format, args...) }
func AuthInfo(format string, args ...interface{})  { Info(AreaAuth, format, args...) }
func AuthWarn(format string, args ...interface{})  { Warn(AreaAuth, format, args...) }
func AuthError(format string, args ...interface{}) { Error(AreaAuth, format, args...) }

// Config Logging
func ConfigDebug(format string, args ...interface{}) { Debug(AreaConfig, format, args...) }
func ConfigInfo(format string, args ...interface{})  { Info(AreaConfig, format, args...) }
func ConfigWarn(format string, args ...interface{})  { Warn(AreaConfig, format, args...) }
func ConfigError(format string, args ...interface{}) { Error(AreaConfig, format, args...) }

// ReloadConfig lädt die Konfiguration neu
func ReloadConfig() error {
	if globalLogger == nil {
		return fmt.Errorf("logger not initialized")
	}
	globalLogger.loadConfig()
	return nil
}

// EnableArea aktiviert Logging für einen Bereich
func EnableArea(area LogArea) {
	if globalLogger != nil {
		if flag, exists := globalLogger.areaEnabled[area]; exists {
			atomic.StoreInt32(flag, 1)
		}
	}
}

// DisableArea deaktiviert Logging für einen Bereich
func DisableArea(area LogArea) {
	if globalLogger != nil {
		if flag, exists := globalLogger.areaEnabled[area]; exists {
			atomic.StoreInt32(flag, 0)
		}
	}
}

// GetAreaStatus gibt den Status eines Bereichs zurück
func GetAreaStatus(area LogArea) bool {
	if globalLogger != nil {
		return globalLogger.isAreaEnabled(area)
	}
	return false
}

// ListAreas gibt alle verfügbaren Bereiche zurück
func ListAreas() []LogArea {
	return append([]LogArea(nil), allAreas...)
}

// Hilfsfunktionen
func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Close schließt das Logging-System
func Close() {
	if globalLogger != nil && globalLogger.file != nil {
		globalLogger.file.Close()
	}
}
