package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	c "github.com/life-stream-dev/life-stream-go-stomp-client/internal/config"
)

const (
	LevelFatal slog.Level = 12
)

// sink owns the log file and the single writer goroutine. Handlers derived
// through WithAttrs/WithGroup share it.
type sink struct {
	ch          chan []byte
	mu          sync.Mutex
	writer      io.Writer
	mirror      io.Writer
	currentDay  int
	currentFile *os.File
	basePath    string
	wg          sync.WaitGroup
	stateMu     sync.RWMutex
	closed      bool
}

type AsyncHandler struct {
	sink     *sink
	attrs    []slog.Attr
	group    string
	logLevel slog.Level
}

// NewAsyncHandler writes records to basePath/YYYY-MM-DD.log. When mirror is
// non-nil every line is copied to it as well.
func NewAsyncHandler(basePath string, logLevel slog.Level, mirror io.Writer) *AsyncHandler {
	s := &sink{
		ch:       make(chan []byte, 1024),
		basePath: basePath,
		mirror:   mirror,
	}
	if err := s.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	s.wg.Add(1)
	go s.startWorker()
	return &AsyncHandler{sink: s, logLevel: logLevel}
}

func (s *sink) cleanOldLogs() {
	files, _ := filepath.Glob(filepath.Join(s.basePath, "*.log"))
	now := time.Now()

	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if now.Sub(fi.ModTime()) > 30*24*time.Hour {
			_ = os.Remove(f)
		}
	}
}

func (s *sink) rotateIfNeeded() error {
	now := time.Now()
	currentDay := now.YearDay()

	if currentDay == s.currentDay && s.currentFile != nil {
		return nil
	}

	if s.currentFile != nil {
		if err := s.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		s.currentFile = nil
	}

	logPath := s.getLogPath(now)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		s.writer = s.fallback()
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.writer = s.fallback()
		return fmt.Errorf("failed to open log file: %w", err)
	}

	s.currentFile = f
	s.currentDay = currentDay
	if s.mirror != nil {
		s.writer = io.MultiWriter(s.mirror, f)
	} else {
		s.writer = f
	}
	s.cleanOldLogs()
	return nil
}

func (s *sink) fallback() io.Writer {
	if s.mirror != nil {
		return s.mirror
	}
	return io.Discard
}

func (s *sink) getLogPath(now time.Time) string {
	return filepath.Join(s.basePath, now.Format("2006-01-02")+".log")
}

func (s *sink) startWorker() {
	defer s.wg.Done()
	for data := range s.ch {
		s.mu.Lock()
		_ = s.rotateIfNeeded()
		_, _ = s.writer.Write(data)
		s.mu.Unlock()
	}
}

func (s *sink) write(p []byte) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.closed {
		return
	}
	pb := make([]byte, len(p))
	copy(pb, p)
	s.ch <- pb
}

func (s *sink) close() {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.stateMu.Unlock()

	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}
}

func (h *AsyncHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logLevel
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	case LevelFatal:
		level = color.HiRedString("FATAL")
	}

	line := fmt.Sprintf(
		"%s | %-5s | %s",
		color.GreenString(r.Time.Format("2006-01-02T15:04:05")),
		level,
		color.CyanString(r.Message),
	)

	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}
	for _, attr := range h.attrs {
		line += color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value))
	}
	r.Attrs(func(attr slog.Attr) bool {
		line += color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value))
		return true
	})

	line += "\n"

	h.sink.write([]byte(line))
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &AsyncHandler{
		sink:     h.sink,
		attrs:    newAttrs,
		group:    h.group,
		logLevel: h.logLevel,
	}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		sink:     h.sink,
		attrs:    h.attrs,
		group:    name,
		logLevel: h.logLevel,
	}
}

// Close drains pending records and closes the current log file.
func (h *AsyncHandler) Close() error {
	h.sink.close()
	return nil
}

type ShutdownCallback struct {
	handler *AsyncHandler
}

func (lc *ShutdownCallback) Invoke(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = lc.handler.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Init installs the async handler as the default slog logger. The terminal
// belongs to the interactive prompt, so log lines only reach stderr in debug
// mode.
func Init(config c.Config) *ShutdownCallback {
	var handler *AsyncHandler
	if config.DebugMode {
		handler = NewAsyncHandler(config.LogDir, slog.LevelDebug, os.Stderr)
	} else {
		handler = NewAsyncHandler(config.LogDir, slog.LevelInfo, nil)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logger initialized")
	return &ShutdownCallback{handler: handler}
}

func Debug(msg string, v ...interface{}) {
	slog.Debug(msg, v...)
}

func DebugF(msg string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(msg, v...))
}

func Info(msg string, v ...interface{}) {
	slog.Info(msg, v...)
}

func InfoF(msg string, v ...interface{}) {
	slog.Info(fmt.Sprintf(msg, v...))
}

func Warn(msg string, v ...interface{}) {
	slog.Warn(msg, v...)
}

func WarnF(msg string, v ...interface{}) {
	slog.Warn(fmt.Sprintf(msg, v...))
}

func Error(msg string, v ...interface{}) {
	slog.Error(msg, v...)
}

func ErrorF(msg string, v ...interface{}) {
	slog.Error(fmt.Sprintf(msg, v...))
}

func Fatal(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, msg, v...)
}

func FatalF(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, fmt.Sprintf(msg, v...))
}
