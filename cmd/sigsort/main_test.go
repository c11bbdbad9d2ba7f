package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/sigsort/internal/backup"
	"github.com/John-Robertt/sigsort/internal/config"
	"github.com/John-Robertt/sigsort/internal/domain"
	"github.com/John-Robertt/sigsort/internal/infra/runlock"
)

var (
	mp3Bytes = []byte("ID3\x04\x00\x00\x00\x00\x00\x00audio-payload")
	mp4Bytes = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00video-payload")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
)

func write(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func execCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errBuf bytes.Buffer
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errBuf.String(), err
}

func decodeReport(t *testing.T, stdout string) domain.RunReport {
	t.Helper()
	var rr domain.RunReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout)
	}
	return rr
}

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)
	write(t, filepath.Join(root, "b.txt"), mp4Bytes)
	write(t, filepath.Join(root, "c.bin"), []byte("plain text"))

	stdout, stderr, err := execCLI(t, "run", root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}

	rr := decodeReport(t, stdout)
	if rr.Summary.Total != 3 || rr.Summary.Moved != 2 || rr.Summary.Unknown != 1 || rr.Summary.Corrected != 1 || rr.Summary.Skipped != 0 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if strings.Contains(stdout, "进度") || strings.Contains(stdout, "开始整理") {
		t.Fatalf("stdout 不应包含进度输出：%q", stdout)
	}
	if !strings.Contains(stderr, "total=3 moved=2 unknown=1") {
		t.Fatalf("stderr 缺少摘要行：%q", stderr)
	}

	if _, err := os.Stat(filepath.Join(root, "video", "b.mp4")); err != nil {
		t.Fatalf("期望 b.txt 被纠正为 video/b.mp4：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, runlock.FileName)); !os.IsNotExist(err) {
		t.Fatalf("运行结束后锁文件应被删除：%v", err)
	}
}

func TestCLI_MissingDir_SourceNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	stdout, _, err := execCLI(t, "run", missing)
	if err == nil {
		t.Fatalf("期望返回错误")
	}
	if got := config.Code(err); got != config.ErrCodeSourceNotFound {
		t.Fatalf("期望 %s，实际 %q（err=%v）", config.ErrCodeSourceNotFound, got, err)
	}

	rr := decodeReport(t, stdout)
	if rr.Summary.Failed != 1 || rr.Items[0].Reason != config.ErrCodeSourceNotFound {
		t.Fatalf("期望一条 source_not_found 失败条目，实际 %+v", rr.Items)
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, config.FileName), []byte("workers = \"many\"\n"))

	_, _, err := execCLI(t, "run", root)
	if got := config.Code(err); got != config.ErrCodeInvalid {
		t.Fatalf("期望 %s，实际 %q（err=%v）", config.ErrCodeInvalid, got, err)
	}
}

func TestCLI_RunLocked(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)

	lock, err := runlock.Acquire(root)
	if err != nil {
		t.Fatalf("加锁失败：%v", err)
	}
	defer lock.Release()

	_, _, err = execCLI(t, "run", root)
	if got := config.Code(err); got != config.ErrCodeRunLocked {
		t.Fatalf("期望 %s，实际 %q（err=%v）", config.ErrCodeRunLocked, got, err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.mp3")); err != nil {
		t.Fatalf("加锁失败时不应移动任何文件：%v", err)
	}

	// dry-run 不加锁，可以与正在进行的 run 并存。
	stdout, stderr, err := execCLI(t, "run", "--dry-run", root)
	if err != nil {
		t.Fatalf("dry-run 不应受锁影响：%v\nstderr=%s", err, stderr)
	}
	rr := decodeReport(t, stdout)
	if !rr.DryRun || rr.Summary.Moved != 1 {
		t.Fatalf("dry-run 结果不符合预期：%+v", rr.Summary)
	}
	if _, err := os.Stat(filepath.Join(root, "a.mp3")); err != nil {
		t.Fatalf("dry-run 不应移动文件：%v", err)
	}
}

func TestCLI_ReportFile(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	stdout, stderr, err := execCLI(t, "run", "--report", reportPath, root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}

	b, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("读取报告文件失败：%v", err)
	}
	fromFile := decodeReport(t, string(b))
	fromStdout := decodeReport(t, stdout)
	if fromFile.RunID == "" || fromFile.RunID != fromStdout.RunID {
		t.Fatalf("报告文件与 stdout 应为同一次 run：file=%q stdout=%q", fromFile.RunID, fromStdout.RunID)
	}
}

func TestCLI_CategoryModeWithOverride(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "shot.png"), pngBytes)
	write(t, filepath.Join(root, "notes.log"), []byte("hello"))
	cats := filepath.Join(t.TempDir(), "cats.json")
	write(t, cats, []byte(`{"Pictures": ["png"], "Logs": ["log"]}`))

	stdout, stderr, err := execCLI(t, "run", "--mode", "category", "-c", cats, root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	rr := decodeReport(t, stdout)
	if rr.Summary.ByCategory["Pictures"] != 1 || rr.Summary.ByCategory["Logs"] != 1 {
		t.Fatalf("分类统计不符合预期：%+v", rr.Summary.ByCategory)
	}
	if _, err := os.Stat(filepath.Join(root, "Logs", "notes.log")); err != nil {
		t.Fatalf("期望 notes.log 移入 Logs/：%v", err)
	}
}

func TestCLI_Backup(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "inbox")
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)

	_, stderr, err := execCLI(t, "run", "-b", root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("读取父目录失败：%v", err)
	}
	var backupDir string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), backup.Prefix) {
			backupDir = filepath.Join(parent, e.Name())
		}
	}
	if backupDir == "" {
		t.Fatalf("期望在父目录生成备份，实际 %v", entries)
	}
	if _, err := os.Stat(filepath.Join(backupDir, "a.mp3")); err != nil {
		t.Fatalf("备份应保留原始布局：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "audio", "a.mp3")); err != nil {
		t.Fatalf("备份后仍应照常整理：%v", err)
	}
}

func TestCategoriesCommand(t *testing.T) {
	stdout, _, err := execCLI(t, "categories")
	if err != nil {
		t.Fatalf("命令执行失败：%v", err)
	}
	for _, want := range []string{"Documents", "Images", "Misc", "pdf"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("输出缺少 %q：%s", want, stdout)
		}
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	write(t, bad, []byte(`["not", "an", "object"]`))
	if _, _, err := execCLI(t, "categories", "-c", bad); err == nil {
		t.Fatalf("非法分类文件应返回错误")
	}
}

func TestSniffCommand(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "song.txt")
	write(t, song, mp3Bytes)

	stdout, _, err := execCLI(t, "sniff", song)
	if err != nil {
		t.Fatalf("命令执行失败：%v", err)
	}
	if !strings.Contains(stdout, "song.mp3") || !strings.Contains(stdout, "Audio") {
		t.Fatalf("期望建议 song.mp3 且分类为 Audio：%s", stdout)
	}
	if _, err := os.Stat(song); err != nil {
		t.Fatalf("sniff 不应移动文件：%v", err)
	}
}

func TestRenderReport(t *testing.T) {
	rr := domain.RunReport{
		StartedAt:  time.Unix(0, 0),
		FinishedAt: time.Unix(2, 0),
		Items: []domain.MoveOutcome{
			{Src: "/x/a.mp3", Dst: "/x/audio/a.mp3", Category: "audio", Status: domain.StatusSuccess},
			domain.Failed("/x/b.bin", "", "permission denied"),
		},
	}
	rr.Finalize()

	out := renderReport(rr)
	for _, want := range []string{"moved", "audio", "/x/b.bin", "permission denied"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：%s", want, out)
		}
	}
}

func TestRenderTable_HeadersKeepCase(t *testing.T) {
	out := renderTable([]string{"moved", "files/s"}, [][]string{{"1", "2.0"}}, nil)
	if !strings.Contains(out, "moved") || strings.Contains(out, "MOVED") {
		t.Fatalf("表头应保持原样：%s", out)
	}
}

func execCLIWithInput(t *testing.T, in string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	old := stdinIsTerminal
	stdinIsTerminal = func(io.Reader) bool { return true }
	t.Cleanup(func() { stdinIsTerminal = old })

	cmd := newRootCommand()
	var out, errBuf bytes.Buffer
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errBuf.String(), err
}

func TestCLI_ConfirmationDeclined(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)

	stdout, stderr, err := execCLIWithInput(t, "n\n", "run", root)
	if err != nil {
		t.Fatalf("拒绝确认不应视为错误：%v", err)
	}
	if !strings.Contains(stderr, "已取消") {
		t.Fatalf("stderr 缺少取消提示：%q", stderr)
	}
	if stdout != "" {
		t.Fatalf("取消时 stdout 应为空：%q", stdout)
	}
	if _, err := os.Stat(filepath.Join(root, "a.mp3")); err != nil {
		t.Fatalf("取消时不应移动文件：%v", err)
	}
}

func TestCLI_ConfirmationAccepted(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)

	if _, stderr, err := execCLIWithInput(t, "YES\n", "run", root); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	if _, err := os.Stat(filepath.Join(root, "audio", "a.mp3")); err != nil {
		t.Fatalf("确认后应照常整理：%v", err)
	}
}

func TestCLI_YesFlagSkipsPrompt(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)

	// 输入为空：若仍提示则会被当作拒绝。
	_, stderr, err := execCLIWithInput(t, "", "run", "-y", root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	if strings.Contains(stderr, "(y/N)") {
		t.Fatalf("--yes 时不应提示：%q", stderr)
	}
	if _, err := os.Stat(filepath.Join(root, "audio", "a.mp3")); err != nil {
		t.Fatalf("--yes 时应直接整理：%v", err)
	}
}

func TestCLI_ReportInsideRootNotEnumerated(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), mp3Bytes)
	reportPath := filepath.Join(root, "last-run.json")
	write(t, reportPath, []byte("{}"))

	stdout, stderr, err := execCLI(t, "run", "--report", reportPath, root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	rr := decodeReport(t, stdout)
	if rr.Summary.Total != 1 || rr.Summary.Moved != 1 {
		t.Fatalf("报告文件与锁文件不应参与枚举：%+v items=%+v", rr.Summary, rr.Items)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("报告文件应写在原处：%v", err)
	}
}
