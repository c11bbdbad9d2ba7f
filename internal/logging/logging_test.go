package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TextDefaultRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	l.Info("hidden")
	l.Warn("shown", "file", "a.mp3")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("INFO 不应输出：%q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "file=a.mp3") {
		t.Fatalf("期望 text 格式的 WARN 行，实际 %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "DEBUG", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	l.Debug("moved", "dst", "audio/a.mp3")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("期望 JSON 行，实际 %q：%v", buf.String(), err)
	}
	if rec["msg"] != "moved" || rec["dst"] != "audio/a.mp3" {
		t.Fatalf("字段不符合预期：%v", rec)
	}
}

func TestNew_RejectsUnknownValues(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("未知 level 期望错误")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("未知 format 期望错误")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		" info ":  slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)：期望 %v，实际 %v（err=%v）", in, want, got, err)
		}
	}
}

func TestDiscardAndOrDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("Discard 不应启用任何级别")
	}
	if OrDiscard(nil) == nil {
		t.Fatalf("OrDiscard(nil) 不应返回 nil")
	}
	l := slog.Default()
	if OrDiscard(l) != l {
		t.Fatalf("OrDiscard 应原样返回非 nil logger")
	}
}
