package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// isTerminal 判断 v（stdin/stdout/stderr）是否是交互终端（只有 *os.File 才可能是）。
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stdinIsTerminal 决定是否需要交互确认；测试可替换。
var stdinIsTerminal = func(r io.Reader) bool { return isTerminal(r) }

// confirm 在 w 上提问并从 r 读取一行；只有 y/yes（不区分大小写）算同意。
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s (y/N): ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
