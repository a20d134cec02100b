// Package logging 提供基于 zerolog 的全局日志配置。
//
// 入口处调用一次 Init，各组件通过 With("component") 获取子 Logger 并显式注入：
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	scorer := recommend.NewScorer(..., recommend.WithLogger(logging.With("recommend")))
//
// 组件内部持有 zerolog.Logger 值，零值不输出任何内容，测试中无需配置。
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config 是日志配置。
type Config struct {
	Level  string    `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"` // 默认 info
	Format string    `koanf:"format" validate:"omitempty,oneof=json console"`                      // 默认 json
	Caller bool      `koanf:"caller"`
	Output io.Writer `koanf:"-"` // 默认 os.Stderr
}

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init 按配置重建全局 Logger，可重复调用。
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	l := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		l = l.Caller()
	}

	mu.Lock()
	logger = l.Logger()
	mu.Unlock()
}

// Logger 返回全局 Logger。
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With 返回带 component 字段的子 Logger。
func With(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// ParseLevel 解析日志级别，无法识别时为 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
