// Package preflight 在移动任何文件之前检查源目录是否可用。
package preflight

import (
	"errors"
	"io/fs"
	"os"

	"github.com/John-Robertt/sigsort/internal/config"
)

// CheckRoot 确认 path 存在、是目录且当前用户有足够权限：
// - 总是需要读 + 遍历
// - needWrite=true（非 dry-run）时还需要写
//
// 失败返回 *config.Error（source_not_found / source_not_dir / source_no_access）。
func CheckRoot(path string, needWrite bool) error {
	fi, err := os.Stat(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return &config.Error{Code: config.ErrCodeSourceNotFound, Path: path, Err: err}
		case errors.Is(err, fs.ErrPermission):
			return &config.Error{Code: config.ErrCodeSourceNoAccess, Path: path, Err: err}
		default:
			return &config.Error{Code: config.ErrCodeSourceNotFound, Path: path, Err: err}
		}
	}
	if !fi.IsDir() {
		return &config.Error{Code: config.ErrCodeSourceNotDir, Path: path}
	}
	if err := checkAccess(path, needWrite); err != nil {
		return &config.Error{Code: config.ErrCodeSourceNoAccess, Path: path, Err: err}
	}
	return nil
}

// CheckFile 检查单个文件能否被读取并移走；返回空字符串表示可以，否则返回简短原因
// （例如 "no read permission"）。文件不存在不在这里报告。
func CheckFile(path string) string {
	return fileProblem(path)
}
