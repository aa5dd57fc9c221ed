package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// 中文说明：
// 轻量日志封装：全局级别过滤，回测批处理时可调低减少刷屏；
// Writer 可替换（测试捕获输出用）。

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu      sync.Mutex
	current = LevelInfo
	std     = log.New(os.Stderr, "", log.LstdFlags)
)

func SetLevel(s string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		current = LevelDebug
	case "info":
		current = LevelInfo
	case "warn", "warning":
		current = LevelWarn
	case "error":
		current = LevelError
	default:
		current = LevelInfo
	}
}

// SetOutput 重定向日志输出（默认 stderr）。
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

func logf(lv Level, prefix, format string, v ...any) {
	mu.Lock()
	enabled := current <= lv
	mu.Unlock()
	if enabled {
		std.Printf(prefix+format, v...)
	}
}

func Debugf(format string, v ...any) { logf(LevelDebug, "[DEBUG] ", format, v...) }
func Infof(format string, v ...any)  { logf(LevelInfo, "[INFO] ", format, v...) }
func Warnf(format string, v ...any)  { logf(LevelWarn, "[WARN] ", format, v...) }
func Errorf(format string, v ...any) { logf(LevelError, "[ERROR] ", format, v...) }
