//go:build linux && amd64 && cgo

package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tangzhangming/dyncall/internal/config"
	"github.com/tangzhangming/dyncall/internal/ffi"
)

// TestSessionCall 测试按文本描述调用 libc
func TestSessionCall(t *testing.T) {
	s := NewSession(ffi.NewEngine(), config.DefaultLibc())
	defer s.Close()

	out, err := s.Call("", "abs", []string{"i32:-5"}, "i32")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "5" {
		t.Errorf("abs(-5) = %s, want 5", out)
	}

	if _, err := s.Call("", "no_such_symbol_dyncall", nil, "i32"); err == nil {
		t.Error("unknown symbol should fail")
	}
	if len(s.libs) != 1 {
		t.Errorf("libraries opened = %d, want 1 (cached)", len(s.libs))
	}
}

// TestRunScript 测试脚本执行与期望值检查
func TestRunScript(t *testing.T) {
	sc, err := config.ParseScript([]byte(`
[[call]]
symbol = "abs"
args = ["i32:-5"]
return = "i32"
expect = "5"

[[call]]
symbol = "labs"
args = ["i64:-7"]
return = "i64"
expect = "8"

[[call]]
symbol = "no_such_symbol_dyncall"
`))
	if err != nil {
		t.Fatal(err)
	}

	s := NewSession(ffi.NewEngine(), config.DefaultLibc())
	defer s.Close()

	var buf bytes.Buffer
	err = s.RunScript(sc, &buf)
	if err == nil {
		t.Fatal("expected mismatch and lookup errors")
	}
	out := buf.String()
	if !strings.Contains(out, "#1 abs(i32:-5) -> i32 = 5\n") {
		t.Errorf("missing first result:\n%s", out)
	}
	if !strings.Contains(out, "= 7 (expected 8)") {
		t.Errorf("missing mismatch report:\n%s", out)
	}
	if !strings.Contains(err.Error(), "call #3") {
		t.Errorf("err = %v, want call #3 failure", err)
	}
}

// TestExecCall 测试 REPL 执行调用
func TestExecCall(t *testing.T) {
	r, buf := newTestREPL()
	r.Exec("abs i32:-42 -> i32")
	if strings.TrimSpace(buf.String()) != "42" {
		t.Errorf("output = %q, want 42", buf.String())
	}
}
