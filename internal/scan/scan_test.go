package scan

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func rels(t *testing.T, root string, opt Options) []string {
	t.Helper()
	got, err := Scan(root, opt)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	out := make([]string, 0, len(got))
	for _, r := range got {
		out = append(out, filepath.ToSlash(r.RelPath))
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScan_TopLevelOnlyByDefault(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.mp3"))
	touch(t, filepath.Join(root, "a.bin"))
	touch(t, filepath.Join(root, "nested", "c.mp4"))

	got := rels(t, root, Options{})
	if want := []string{"a.bin", "b.mp3"}; !equal(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestScan_RecursiveSkipsExcludedAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "in", "x.mp4"))
	touch(t, filepath.Join(root, "audio", "done.mp3"))
	touch(t, filepath.Join(root, "keep", "deep", "y.bin"))
	touch(t, filepath.Join(root, ".git", "HEAD"))
	touch(t, filepath.Join(root, "top.txt"))

	got := rels(t, root, Options{Recursive: true, Exclude: []string{"audio", " ", filepath.Join(root, "keep")}})
	if want := []string{"in/x.mp4", "top.txt"}; !equal(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestScan_RecordFields(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Song.Final.MP3"))

	got, err := Scan(root, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 个文件，实际 %d", len(got))
	}
	r := got[0]
	if r.Ext != "mp3" || r.Name != "Song.Final.MP3" || r.Stem() != "Song.Final" || r.Size != 1 {
		t.Fatalf("字段不符合预期：%+v", r)
	}
	if r.AbsPath != filepath.Join(root, "Song.Final.MP3") {
		t.Fatalf("AbsPath 不符合预期：%q", r.AbsPath)
	}
}

func TestScan_SymlinkReturnedAsRecord(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Windows 上创建符号链接需要额外权限")
	}
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.bin")
	touch(t, outside)
	if err := os.Symlink(outside, filepath.Join(root, "link.bin")); err != nil {
		t.Fatalf("创建符号链接失败：%v", err)
	}

	got := rels(t, root, Options{})
	if want := []string{"link.bin"}; !equal(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestScan_SymlinkToDirIsNotAFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Windows 上创建符号链接需要额外权限")
	}
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.bin"))
	target := t.TempDir()
	touch(t, filepath.Join(target, "inner.bin"))
	if err := os.Symlink(target, filepath.Join(root, "linkdir")); err != nil {
		t.Fatalf("创建符号链接失败：%v", err)
	}
	if err := os.Symlink(filepath.Join(root, "gone.bin"), filepath.Join(root, "dangling.bin")); err != nil {
		t.Fatalf("创建符号链接失败：%v", err)
	}

	// 悬空链接照常返回（后续阶段报告原因）；指向目录的链接两种模式下都不返回。
	want := []string{"a.bin", "dangling.bin"}
	for _, rec := range []bool{false, true} {
		if got := rels(t, root, Options{Recursive: rec}); !equal(got, want) {
			t.Fatalf("recursive=%v：期望 %v，实际 %v", rec, want, got)
		}
	}
}

func TestScan_ExcludeFilesNeverEnumerated(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.bin"))
	touch(t, filepath.Join(root, ".sigsort.lock"))
	touch(t, filepath.Join(root, "sigsort.toml"))
	touch(t, filepath.Join(root, "sub", "sigsort.toml"))
	report := filepath.Join(root, "sub", "report.json")
	touch(t, report)

	opt := Options{ExcludeFiles: []string{".sigsort.lock", "sigsort.toml", report}}
	if got, want := rels(t, root, opt), []string{"a.bin"}; !equal(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}

	// 只排除列出的路径本身：子目录中的同名文件仍是普通文件。
	opt.Recursive = true
	if got, want := rels(t, root, opt), []string{"a.bin", "sub/sigsort.toml"}; !equal(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestScan_MissingRootIsError(t *testing.T) {
	for _, rec := range []bool{false, true} {
		if _, err := Scan(filepath.Join(t.TempDir(), "missing"), Options{Recursive: rec}); err == nil {
			t.Fatalf("recursive=%v：root 不存在时期望错误", rec)
		}
	}
}

func TestScan_UnreadableSubdirReportedAndSkipped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Windows 上目录权限位不生效")
	}
	if os.Geteuid() == 0 {
		t.Skip("root 用户绕过权限检查")
	}
	root := t.TempDir()
	touch(t, filepath.Join(root, "ok.bin"))
	locked := filepath.Join(root, "locked")
	touch(t, filepath.Join(locked, "hidden.bin"))
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod 失败：%v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var reported []string
	got := rels(t, root, Options{Recursive: true, OnError: func(path string, err error) {
		reported = append(reported, path)
	}})
	if want := []string{"ok.bin"}; !equal(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
	if len(reported) != 1 || reported[0] != locked {
		t.Fatalf("期望报告 %q，实际 %v", locked, reported)
	}
}
