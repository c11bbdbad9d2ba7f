//go:build unix

package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func checkAccess(path string, needWrite bool) error {
	mode := uint32(unix.R_OK | unix.X_OK)
	if needWrite {
		mode |= unix.W_OK
	}
	if err := unix.Access(path, mode); err != nil {
		return fmt.Errorf("权限不足：%w", err)
	}
	return nil
}

// fileProblem 检查当前用户能否读取并移走 path。
//
// 移走一个文件需要：文件可读（识别/校验要读内容）、所在目录可写可遍历；
// 所在目录带粘滞位时，还要求文件或目录属于当前用户。
func fileProblem(path string) string {
	if err := unix.Access(path, unix.R_OK); err != nil {
		if errors.Is(err, unix.EACCES) {
			return "no read permission"
		}
		// 不存在/悬空链接等：交给后续阶段给出具体原因。
		return ""
	}

	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return "directory not writable"
	}

	uid := os.Geteuid()
	if uid == 0 {
		return ""
	}
	var dst unix.Stat_t
	if err := unix.Stat(dir, &dst); err != nil || dst.Mode&unix.S_ISVTX == 0 {
		return ""
	}
	var fst unix.Stat_t
	if err := unix.Lstat(path, &fst); err != nil {
		return ""
	}
	if fst.Uid != uint32(uid) && dst.Uid != uint32(uid) {
		return fmt.Sprintf("owned by uid %d", fst.Uid)
	}
	return ""
}
