package repl

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"

	"github.com/tangzhangming/dyncall/internal/config"
	"github.com/tangzhangming/dyncall/internal/ffi"
)

// Session 缓存已打开的库并按文本描述执行调用
type Session struct {
	engine     *ffi.Engine
	defaultLib string
	libs       map[string]*ffi.Library
}

// NewSession 创建会话，defaultLib 为未指定库时使用的库名
func NewSession(engine *ffi.Engine, defaultLib string) *Session {
	if engine == nil {
		engine = ffi.Default()
	}
	return &Session{
		engine:     engine,
		defaultLib: defaultLib,
		libs:       make(map[string]*ffi.Library),
	}
}

// DefaultLibrary 默认库名
func (s *Session) DefaultLibrary() string {
	return s.defaultLib
}

// SetDefaultLibrary 切换默认库
func (s *Session) SetDefaultLibrary(name string) {
	s.defaultLib = name
}

// Library 打开（或复用）动态库
func (s *Session) Library(name string) (*ffi.Library, error) {
	if name == "" {
		name = s.defaultLib
	}
	if lib, ok := s.libs[name]; ok {
		return lib, nil
	}
	lib, err := s.engine.Open(name)
	if err != nil {
		return nil, err
	}
	s.libs[name] = lib
	return lib, nil
}

// Call 解析参数与返回类型后调用 lib 中的 symbol，返回格式化后的结果
func (s *Session) Call(lib, symbol string, args []string, ret string) (string, error) {
	rt, err := ffi.ParseType(ret)
	if err != nil {
		return "", err
	}
	vals, err := ffi.ParseArgs(args)
	if err != nil {
		return "", err
	}
	l, err := s.Library(lib)
	if err != nil {
		return "", err
	}
	h, err := l.Func(symbol)
	if err != nil {
		return "", err
	}
	raw, err := ffi.CallRaw(h.AddArgs(vals...), rt.Type)
	if err != nil {
		return "", err
	}
	return rt.Format(raw), nil
}

// RunScript 依次执行脚本中的调用并把结果写到 w
// 单个调用失败或结果与 expect 不符时继续执行，错误合并返回
func (s *Session) RunScript(sc *config.Script, w io.Writer) error {
	var errs error
	for i, c := range sc.Calls {
		desc := describe(c)
		out, err := s.Call(c.Library, c.Symbol, c.Args, c.Return)
		if err != nil {
			fmt.Fprintf(w, "#%d %s: error: %v\n", i+1, desc, err)
			errs = multierr.Append(errs, fmt.Errorf("call #%d %s: %w", i+1, desc, err))
			continue
		}
		if c.Expect != "" && out != c.Expect {
			fmt.Fprintf(w, "#%d %s = %s (expected %s)\n", i+1, desc, out, c.Expect)
			errs = multierr.Append(errs, fmt.Errorf("call #%d %s: got %s, expected %s", i+1, desc, out, c.Expect))
			continue
		}
		fmt.Fprintf(w, "#%d %s = %s\n", i+1, desc, out)
	}
	return errs
}

// Close 关闭所有打开的库
func (s *Session) Close() error {
	var errs error
	for name, lib := range s.libs {
		errs = multierr.Append(errs, lib.Close())
		delete(s.libs, name)
	}
	return errs
}

func describe(c config.CallSpec) string {
	ret := c.Return
	if ret == "" {
		ret = "void"
	}
	return fmt.Sprintf("%s(%s) -> %s", c.Symbol, strings.Join(c.Args, ", "), ret)
}

// ParseLine 解析一行调用描述
//
//	abs i32:-5 -> i32
//	getpid -> i32
//	srand u32:1
func ParseLine(line string) (config.CallSpec, error) {
	var c config.CallSpec
	body, ret, hasRet := strings.Cut(line, "->")
	if hasRet {
		c.Return = strings.TrimSpace(ret)
		if c.Return == "" || strings.Contains(c.Return, " ") {
			return c, fmt.Errorf("bad return type %q", c.Return)
		}
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return c, fmt.Errorf("missing symbol")
	}
	c.Symbol = fields[0]
	if strings.Contains(c.Symbol, ":") {
		return c, fmt.Errorf("missing symbol before %q", c.Symbol)
	}
	c.Args = fields[1:]
	return c, nil
}
