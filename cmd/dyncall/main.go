package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tangzhangming/dyncall/internal/config"
	"github.com/tangzhangming/dyncall/internal/ffi"
	"github.com/tangzhangming/dyncall/internal/logger"
	"github.com/tangzhangming/dyncall/internal/repl"
)

const (
	Version = "0.1.0"
)

var (
	libName     = flag.String("lib", "", "Dynamic library to load (default: platform libc)")
	symbol      = flag.String("sym", "", "Symbol to call")
	retType     = flag.String("ret", "i32", "Return type: void bool ptr i8..i64 u8..u64")
	scriptPath  = flag.String("script", "", "Run a TOML call script")
	interactive = flag.Bool("i", false, "Start the interactive REPL")
	configPath  = flag.String("config", "", "Config file (default: ./dyncall.toml if present)")
	debug       = flag.Bool("debug", false, "Log trampoline IR and machine code")
	showVersion = flag.Bool("version", false, "Print version")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("dyncall v%s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}
	if *libName != "" {
		cfg.Library = *libName
	}

	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine := ffi.NewEngine(ffi.WithConfig(cfg), ffi.WithLogger(log))
	session := repl.NewSession(engine, cfg.Library)

	code := run(engine, session)
	if err := session.Close(); err != nil {
		log.Warn("close libraries", zap.Error(err))
	}
	_ = log.Sync()
	os.Exit(code)
}

func run(engine *ffi.Engine, session *repl.Session) int {
	switch {
	case *interactive:
		if err := repl.New(engine, session, repl.DefaultConfig()).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0

	case *scriptPath != "":
		sc, err := config.LoadScript(*scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if err := session.RunScript(sc, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Script failed: %v\n", err)
			return 1
		}
		return 0

	case *symbol != "":
		out, err := session.Call("", *symbol, flag.Args(), *retType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(out)
		return 0
	}

	return demo(session)
}

// demo 在 libc 中解析 abs 并以 -5 调用
func demo(session *repl.Session) int {
	lib, err := session.Library("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	h, err := lib.Func("abs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	n, err := ffi.Call[int32](h.Arg(ffi.I32(-5)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("abs(-5) = %d\n", n)
	return 0
}

func printUsage() {
	fmt.Printf("dyncall v%s\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  dyncall                                  call abs(-5) in libc")
	fmt.Println("  dyncall -sym <name> [-lib <lib>] [-ret <type>] [kind:value ...]")
	fmt.Println("  dyncall -script calls.toml")
	fmt.Println("  dyncall -i")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  dyncall -sym labs -ret i64 i64:-42")
	fmt.Println("  dyncall -lib libc.so.6 -sym toupper -ret i32 i32:97")
	fmt.Println("  dyncall -debug -sym getpid")
}
