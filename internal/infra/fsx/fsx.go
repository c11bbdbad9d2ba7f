package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV/不支持硬链接/拷贝损坏等错误。
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
	copyFunc   = CopyExclusive
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
// 上层可把它映射为 target conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename/link 失败。
// MoveNoReplace 会自行降级为 copy+verify+delete；只有直接调用 Rename 时才会看到它。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 幂等地创建目录（含父目录）。已存在视为成功；同名文件挡路返回 PathTypeConflictError。
// 多个 worker 并发创建同一目录是安全的。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// 竞争：另一个 worker 刚好建好了。
		if fi, e := os.Stat(dir); e == nil && fi.IsDir() {
			return nil
		}
		return err
	}
	return nil
}

// MoveNoReplace 把 src 移动到 dst，且绝不覆盖已存在的 dst。
//
// - 首选 link + unlink：link 在目标存在时原子地失败（返回 os.ErrExist）
// - 文件系统不支持硬链接：退化为 Lstat 检查 + rename（存在极小的竞争窗口）
// - 跨盘（EXDEV）：退化为独占创建的 copy + 校验 + 删除源文件
func MoveNoReplace(src, dst string) error {
	err := linkFunc(src, dst)
	switch {
	case err == nil:
		if err := os.Remove(src); err != nil {
			// 源删不掉：撤销链接，避免留下两份。
			_ = os.Remove(dst)
			return err
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return err
	case isEXDEV(err):
		return MoveVerified(src, dst)
	}

	if _, e := os.Lstat(dst); e == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	} else if !errors.Is(e, fs.ErrNotExist) {
		return e
	}
	if err := Rename(src, dst); err != nil {
		if IsCrossDevice(err) {
			return MoveVerified(src, dst)
		}
		return err
	}
	return nil
}

// IntegrityError 表示拷贝后的校验未通过（大小或 SHA-256 不一致）。
type IntegrityError struct {
	Src    string
	Dst    string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("完整性校验失败：%q -> %q：%s", e.Src, e.Dst, e.Detail)
}

func IsIntegrity(err error) bool {
	var e *IntegrityError
	return errors.As(err, &e)
}

// MoveVerified 先独占拷贝到 dst，校验（大小 -> SHA-256）通过后再删除 src。
// 校验失败会删除 dst 的拷贝并返回 IntegrityError；src 保持不动。
func MoveVerified(src, dst string) error {
	if err := copyFunc(src, dst); err != nil {
		return err
	}
	if err := VerifySame(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil {
		// 源删不掉：保持“移动”语义，撤销拷贝。
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// CopyExclusive 把 src 拷贝到 dst；dst 已存在时失败（O_EXCL），不会覆盖。
// 保留权限位与修改时间；失败时清理已创建的 dst。
func CopyExclusive(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	_ = os.Chtimes(dst, fi.ModTime(), fi.ModTime())
	return nil
}

// VerifySame 先比大小，再比整文件 SHA-256。
func VerifySame(a, b string) error {
	ai, err := os.Stat(a)
	if err != nil {
		return err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return err
	}
	if ai.Size() != bi.Size() {
		return &IntegrityError{Src: a, Dst: b, Detail: fmt.Sprintf("大小不一致：%d != %d", ai.Size(), bi.Size())}
	}

	ah, err := FileSHA256(a)
	if err != nil {
		return err
	}
	bh, err := FileSHA256(b)
	if err != nil {
		return err
	}
	if ah != bh {
		return &IntegrityError{Src: a, Dst: b, Detail: "SHA-256 不一致"}
	}
	return nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），覆盖同名文件。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 对临时文件做 Sync；目录 Sync 采用 best-effort（避免平台差异导致误报失败）
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 创建同目录临时文件（前缀带 '.'，命中跳过规则中的隐藏文件，不会被当作待整理文件移走）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
