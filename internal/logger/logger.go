// Package logger 构建 dyncall 使用的 zap 日志器
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 按级别创建控制台日志器
// debug 为 true 时强制 debug 级别并附带调用位置
func New(level string, debug bool) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Development = debug
	cfg.DisableCaller = !debug
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	return cfg.Build()
}

// ParseLevel 解析日志级别，空串视为 info
func ParseLevel(level string) (zapcore.Level, error) {
	var lvl zapcore.Level
	level = strings.TrimSpace(level)
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Must 创建失败时退回到空日志器
func Must(level string, debug bool) *zap.Logger {
	l, err := New(level, debug)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
