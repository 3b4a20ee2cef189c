// Package config 加载 dyncall 的运行配置与调用脚本
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/xyproto/env/v2"
)

// 常量定义
const (
	ConfigFileName = "dyncall.toml" // 默认配置文件名

	EnvLogLevel = "DYNCALL_LOG_LEVEL"
	EnvDebug    = "DYNCALL_DEBUG"
	EnvWX       = "DYNCALL_WX"
	EnvLibc     = "DYNCALL_LIBC"
)

// Config 运行配置
type Config struct {
	// LogLevel 日志级别：debug、info、warn、error
	LogLevel string `toml:"log_level"`

	// Debug 打印每个跳板的 IR 与机器码
	Debug bool `toml:"debug"`

	// WriteXorExecute 代码页先写后执行，关闭时直接映射 RWX
	WriteXorExecute bool `toml:"write_xor_execute"`

	// Library 默认动态库（演示与 REPL 使用）
	Library string `toml:"library"`
}

// Default 返回默认配置
func Default() Config {
	return Config{
		LogLevel:        "info",
		WriteXorExecute: true,
		Library:         DefaultLibc(),
	}
}

// DefaultLibc 返回当前平台 C 运行库的名称
func DefaultLibc() string {
	switch runtime.GOOS {
	case "windows":
		return "msvcrt.dll"
	case "darwin":
		return "libSystem.B.dylib"
	case "freebsd", "openbsd", "netbsd":
		return "libc.so"
	default:
		return "libc.so.6"
	}
}

// Load 读取配置文件并应用环境变量覆盖
// path 为空时尝试当前目录下的 dyncall.toml，文件不存在时使用默认值
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = ConfigFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv 用环境变量覆盖配置
//
// env 缓存进程环境，每次先重新读取，使之后设置的变量也能生效。
func (c *Config) ApplyEnv() {
	env.Load()
	c.LogLevel = env.Str(EnvLogLevel, c.LogLevel)
	c.Library = env.Str(EnvLibc, c.Library)
	if env.Has(EnvDebug) {
		c.Debug = env.Bool(EnvDebug)
	}
	if env.Has(EnvWX) {
		c.WriteXorExecute = env.Bool(EnvWX)
	}
}

// ============================================================================
// 调用脚本
// ============================================================================

// CallSpec 脚本中的一次调用
type CallSpec struct {
	Library string   `toml:"library"` // 为空时使用配置中的默认库
	Symbol  string   `toml:"symbol"`
	Args    []string `toml:"args"`   // 形如 i32:-5
	Return  string   `toml:"return"` // 为空表示 void
	Expect  string   `toml:"expect"` // 可选，格式化后的期望结果
}

// Script 调用脚本
//
//	[[call]]
//	library = "libc.so.6"
//	symbol  = "abs"
//	args    = ["i32:-5"]
//	return  = "i32"
//	expect  = "5"
type Script struct {
	Calls []CallSpec `toml:"call"`
}

// LoadScript 读取调用脚本
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript 解析调用脚本
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, c := range s.Calls {
		if c.Symbol == "" {
			return nil, fmt.Errorf("call #%d: symbol is required", i+1)
		}
	}
	return &s, nil
}
