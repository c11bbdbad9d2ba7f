//go:build !unix

package preflight

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// 没有 access(2) 的平台：实际打开目录，需要写时再创建并删除一个探测文件。
func checkAccess(path string, needWrite bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("无法读取：%w", err)
	}
	_, err = f.Readdirnames(1)
	_ = f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("无法列出：%w", err)
	}

	if !needWrite {
		return nil
	}
	probe, err := os.CreateTemp(path, ".sigsort-probe-*")
	if err != nil {
		return fmt.Errorf("无法写入：%w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// 没有 access(2) 的平台只检查能否打开读取；目录写权限由移动本身报告。
func fileProblem(path string) string {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "no read permission"
		}
		return ""
	}
	_ = f.Close()
	return ""
}
