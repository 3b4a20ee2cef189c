// repl.go - dyncall 交互式调用界面
//
// 每行输入描述一次调用：
//
//	>>> abs i32:-5 -> i32
//	5
//
// 支持历史记录与特殊命令（:help, :quit, :lib, :load, :stats）。

package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/tangzhangming/dyncall/internal/config"
	"github.com/tangzhangming/dyncall/internal/ffi"
)

const historyFile = ".dyncall_history"

// Config REPL 配置
type Config struct {
	Prompt      string
	HistoryPath string // 为空时使用 ~/.dyncall_history
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	cfg := Config{Prompt: ">>> "}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryPath = filepath.Join(home, historyFile)
	}
	return cfg
}

// REPL 交互式调用器
type REPL struct {
	session *Session
	engine  *ffi.Engine
	writer  io.Writer
	config  Config
	history []string
}

// New 创建 REPL
func New(engine *ffi.Engine, session *Session, cfg Config) *REPL {
	return &REPL{
		session: session,
		engine:  engine,
		writer:  os.Stdout,
		config:  cfg,
	}
}

// SetOutput 设置输出
func (r *REPL) SetOutput(w io.Writer) {
	r.writer = w
}

// Run 运行 REPL，直到 EOF 或 :quit
func (r *REPL) Run() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(r.complete)

	if r.config.HistoryPath != "" {
		if f, err := os.Open(r.config.HistoryPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(r.config.HistoryPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	r.printWelcome()
	for {
		line, err := ln.Prompt(r.config.Prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(r.writer, "\nBye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if !r.Exec(line) {
			fmt.Fprintln(r.writer, "Bye!")
			return nil
		}
	}
}

// Exec 执行一行输入，返回 false 表示退出
func (r *REPL) Exec(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	r.addHistory(line)
	if strings.HasPrefix(line, ":") {
		return r.handleCommand(line)
	}

	c, err := ParseLine(line)
	if err != nil {
		fmt.Fprintf(r.writer, "Error: %v\n", err)
		return true
	}
	out, err := r.session.Call("", c.Symbol, c.Args, c.Return)
	if err != nil {
		fmt.Fprintf(r.writer, "Error: %v\n", err)
		return true
	}
	fmt.Fprintln(r.writer, out)
	return true
}

// printWelcome 打印欢迎信息
func (r *REPL) printWelcome() {
	fmt.Fprintln(r.writer, "dyncall REPL")
	fmt.Fprintf(r.writer, "Library: %s\n", r.session.DefaultLibrary())
	fmt.Fprintln(r.writer, "Type :help for help, :quit to exit")
	fmt.Fprintln(r.writer)
}

// handleCommand 处理特殊命令
func (r *REPL) handleCommand(line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case ":help", ":h", ":?":
		r.printHelp()

	case ":quit", ":q", ":exit":
		return false

	case ":lib":
		if len(args) < 1 {
			fmt.Fprintf(r.writer, "Library: %s\n", r.session.DefaultLibrary())
			return true
		}
		if _, err := r.session.Library(args[0]); err != nil {
			fmt.Fprintf(r.writer, "Error: %v\n", err)
			return true
		}
		r.session.SetDefaultLibrary(args[0])
		fmt.Fprintf(r.writer, "Library: %s\n", args[0])

	case ":load", ":l":
		if len(args) < 1 {
			fmt.Fprintln(r.writer, "Usage: :load <script.toml>")
			return true
		}
		sc, err := config.LoadScript(args[0])
		if err != nil {
			fmt.Fprintf(r.writer, "Error: %v\n", err)
			return true
		}
		if err := r.session.RunScript(sc, r.writer); err != nil {
			fmt.Fprintf(r.writer, "Script failed: %v\n", err)
		}

	case ":sig":
		r.printSignature(args)

	case ":stats":
		s := r.engine.Stats()
		fmt.Fprintf(r.writer, "calls=%d failures=%d code_bytes=%d\n", s.Calls, s.Failures, s.CodeBytes)

	case ":history", ":hist":
		r.printHistory()

	default:
		fmt.Fprintf(r.writer, "Unknown command: %s (try :help)\n", cmd)
	}
	return true
}

// commandHelp 特殊命令说明，顺序即 :help 输出顺序
var commandHelp = [][2]string{
	{":help, :h, :?", "Show this help message"},
	{":quit, :q, :exit", "Exit the REPL"},
	{":lib [name]", "Show or switch the default library"},
	{":load <file>", "Run a TOML call script"},
	{":sig <call>", "Show the derived signature without calling"},
	{":stats", "Show call statistics"},
	{":history, :hist", "Show command history"},
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.writer, "Call syntax:")
	fmt.Fprintln(r.writer, "  <symbol> [kind:value ...] [-> ret]")
	fmt.Fprintln(r.writer, "  kinds: i8 u8 i16 u16 i32 u32 i64 u64 bool ptr; ret may also be void")
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, "Commands:")
	for _, c := range commandHelp {
		fmt.Fprintf(r.writer, "  %-18s%s\n", c[0], c[1])
	}
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, "Examples:")
	for _, ex := range []string{"abs i32:-5 -> i32", "labs i64:-42 -> i64", "getpid -> i32"} {
		fmt.Fprintf(r.writer, "  %s%s\n", r.config.Prompt, ex)
	}
}

// printSignature 打印一行调用推导出的签名
func (r *REPL) printSignature(args []string) {
	c, err := ParseLine(strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(r.writer, "Error: %v\n", err)
		return
	}
	rt, err := ffi.ParseType(c.Return)
	if err != nil {
		fmt.Fprintf(r.writer, "Error: %v\n", err)
		return
	}
	vals, err := ffi.ParseArgs(c.Args)
	if err != nil {
		fmt.Fprintf(r.writer, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.writer, "%s%s\n", c.Symbol, ffi.BuildSignature(vals, rt.Type))
}

const maxHistory = 1000

func (r *REPL) printHistory() {
	for i, line := range r.history {
		fmt.Fprintf(r.writer, "%4d  %s\n", i+1, line)
	}
}

// addHistory 记录一行输入，连续重复的只保留一条
func (r *REPL) addHistory(line string) {
	if n := len(r.history); n > 0 && r.history[n-1] == line {
		return
	}
	r.history = append(r.history, line)
	if over := len(r.history) - maxHistory; over > 0 {
		r.history = r.history[over:]
	}
}

// complete 补全特殊命令与类型前缀
func (r *REPL) complete(line string) []string {
	var out []string
	if strings.HasPrefix(line, ":") {
		for _, cmd := range []string{":help", ":quit", ":lib", ":load", ":sig", ":stats", ":history"} {
			if strings.HasPrefix(cmd, line) {
				out = append(out, cmd)
			}
		}
		return out
	}

	head, word := "", line
	if i := strings.LastIndexByte(line, ' '); i >= 0 {
		head, word = line[:i+1], line[i+1:]
	}
	if head == "" {
		return nil
	}
	for _, k := range []string{"i8:", "u8:", "i16:", "u16:", "i32:", "u32:", "i64:", "u64:", "bool:", "ptr:"} {
		if strings.HasPrefix(k, word) {
			out = append(out, head+k)
		}
	}
	sort.Strings(out)
	return out
}
