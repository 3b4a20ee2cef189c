package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tangzhangming/dyncall/internal/config"
	"github.com/tangzhangming/dyncall/internal/ffi"
)

func newTestREPL() (*REPL, *bytes.Buffer) {
	e := ffi.NewEngine()
	r := New(e, NewSession(e, config.DefaultLibc()), Config{Prompt: ">>> "})
	var buf bytes.Buffer
	r.SetOutput(&buf)
	return r, &buf
}

// TestParseLine 测试调用描述解析
func TestParseLine(t *testing.T) {
	tests := []struct {
		in     string
		symbol string
		args   []string
		ret    string
	}{
		{"abs i32:-5 -> i32", "abs", []string{"i32:-5"}, "i32"},
		{"getpid->i32", "getpid", nil, "i32"},
		{"srand u32:1", "srand", []string{"u32:1"}, ""},
		{"  f  i8:1   u8:2 ->  void ", "f", []string{"i8:1", "u8:2"}, "void"},
	}

	for _, tt := range tests {
		c, err := ParseLine(tt.in)
		if err != nil {
			t.Errorf("ParseLine(%q): %v", tt.in, err)
			continue
		}
		if c.Symbol != tt.symbol || c.Return != tt.ret || strings.Join(c.Args, ",") != strings.Join(tt.args, ",") {
			t.Errorf("ParseLine(%q) = %+v", tt.in, c)
		}
	}

	for _, bad := range []string{"", "-> i32", "i32:-5", "abs ->", "abs -> i32 i64"} {
		if _, err := ParseLine(bad); err == nil {
			t.Errorf("ParseLine(%q) should fail", bad)
		}
	}
}

// TestCommands 测试特殊命令
func TestCommands(t *testing.T) {
	r, buf := newTestREPL()

	if !r.Exec(":help") || !strings.Contains(buf.String(), "Call syntax") {
		t.Errorf(":help output = %q", buf.String())
	}
	buf.Reset()

	r.Exec(":stats")
	if !strings.Contains(buf.String(), "calls=0 failures=0") {
		t.Errorf(":stats output = %q", buf.String())
	}
	buf.Reset()

	r.Exec(":sig abs i32:-5 -> i32")
	if !strings.Contains(buf.String(), "abs(i32 sext) -> i32") {
		t.Errorf(":sig output = %q", buf.String())
	}
	buf.Reset()

	r.Exec(":bogus")
	if !strings.Contains(buf.String(), "Unknown command") {
		t.Errorf("unknown command output = %q", buf.String())
	}
	buf.Reset()

	r.Exec("abs i99:1 -> i32")
	if !strings.Contains(buf.String(), "Error:") {
		t.Errorf("bad literal output = %q", buf.String())
	}
	buf.Reset()

	r.Exec(":history")
	if !strings.Contains(buf.String(), ":stats") {
		t.Errorf(":history output = %q", buf.String())
	}

	if r.Exec(":quit") {
		t.Error(":quit should end the loop")
	}
}

// TestComplete 测试补全
func TestComplete(t *testing.T) {
	r, _ := newTestREPL()

	if got := r.complete(":l"); strings.Join(got, ",") != ":lib,:load" {
		t.Errorf("complete(:l) = %v", got)
	}
	if got := r.complete("abs i3"); strings.Join(got, ",") != "abs i32:" {
		t.Errorf("complete(abs i3) = %v", got)
	}
	if got := r.complete("ab"); got != nil {
		t.Errorf("symbol position should not complete: %v", got)
	}
}

// TestDescribe 测试脚本调用描述
func TestDescribe(t *testing.T) {
	got := describe(config.CallSpec{Symbol: "abs", Args: []string{"i32:-5"}})
	if got != "abs(i32:-5) -> void" {
		t.Errorf("describe = %q", got)
	}
}
