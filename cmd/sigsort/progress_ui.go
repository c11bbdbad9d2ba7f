package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/sigsort/internal/app/run"
	"github.com/John-Robertt/sigsort/internal/config"
	"github.com/John-Robertt/sigsort/internal/domain"
)

var (
	_ run.Observer = (*progressUI)(nil)
	_ run.Observer = (*logObserver)(nil)
)

// progressUI 是交互终端下的进度输出：阶段信息逐行打印，执行阶段用进度条。
//
// 所有输出写到 stderr，不污染 stdout。事件来自同一个 goroutine，无需加锁。
type progressUI struct {
	w   io.Writer
	bar *progressbar.ProgressBar

	failed int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	mode := "apply"
	if eff.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(p.w, "[%s] sigsort run (%s)\n", time.Now().Format("15:04:05"), mode)
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  out: %s\n", eff.OutRoot)
	fmt.Fprintf(p.w, "  mode: %s  recursive: %s  verify: %s  unknown: %s\n",
		eff.Mode, onOff(eff.Recursive), onOff(eff.Verify), onOff(eff.CatchAll))
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "exec":
		total := intField(fields, "total_files")
		fmt.Fprintf(p.w, "执行: workers=%d total_files=%d\n", intField(fields, "workers"), total)
		if total > 0 {
			p.bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(p.w),
				progressbar.OptionSetDescription("整理中"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
			)
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnFileDone(idx, total int, res domain.MoveOutcome, dur time.Duration) {
	if res.Status == domain.StatusFailed {
		p.failed++
		if p.bar != nil {
			_ = p.bar.Clear()
		}
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s: %s\n", idx, total, res.Src, truncate(res.Reason, 120))
	}
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progressUI) OnProgress(done, total int, c run.Counts, elapsed time.Duration) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("整理中 moved=%d unknown=%d skip=%d fail=%d", c.Moved, c.Unknown, c.Skipped, c.Failed))
	if done >= total {
		_ = p.bar.Finish()
	}
}

// logObserver 用于非交互环境：进度写成结构化日志（同样在 stderr）。
type logObserver struct {
	log *slog.Logger
}

func newLogObserver(log *slog.Logger) *logObserver {
	return &logObserver{log: log}
}

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	o.log.Info("开始整理",
		"path", eff.Path,
		"out", eff.OutRoot,
		"mode", eff.Mode,
		"recursive", eff.Recursive,
		"dry_run", eff.DryRun,
	)
}

func (o *logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	args := []any{"phase", name, "dur_ms", dur.Milliseconds()}
	for _, k := range []string{"files", "workers", "total_files"} {
		if v, ok := fields[k]; ok {
			args = append(args, k, v)
		}
	}
	o.log.Info("阶段完成", args...)
}

func (o *logObserver) OnFileDone(idx, total int, res domain.MoveOutcome, dur time.Duration) {
	switch res.Status {
	case domain.StatusFailed:
		o.log.Warn("文件处理失败", "src", res.Src, "reason", res.Reason)
	default:
		o.log.Debug("文件完成", "idx", idx, "total", total, "src", res.Src, "dst", res.Dst, "status", res.Status)
	}
}

func (o *logObserver) OnProgress(done, total int, c run.Counts, elapsed time.Duration) {
	o.log.Info("进度",
		"done", done,
		"total", total,
		"moved", c.Moved,
		"unknown", c.Unknown,
		"skipped", c.Skipped,
		"failed", c.Failed,
		"elapsed", formatElapsed(elapsed),
	)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// truncate 按 rune 截断，避免切坏多字节字符。
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
