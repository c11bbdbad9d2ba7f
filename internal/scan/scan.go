package scan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/sigsort/internal/domain"
)

// Options 控制枚举范围。
type Options struct {
	// Recursive=false 时只列出 root 顶层的文件。
	Recursive bool
	// Exclude 是不进入的目录：相对路径视为相对 root，绝对路径按原样处理。
	// 调用方负责把输出目录放进来，保证重复运行不会把已整理的文件再搬一遍。
	Exclude []string
	// ExcludeFiles 是不返回的文件（本工具自己的锁/配置/报告），规则同 Exclude。
	ExcludeFiles []string
	// OnError 接收子目录/条目级别的错误（该条目被跳过，枚举继续）。为 nil 时静默跳过。
	OnError func(path string, err error)
}

// Scan 枚举 root 下的候选文件，返回按 RelPath 排序的 FileRecord。
//
// 规则：
// - 普通文件与指向文件的符号链接会返回（符号链接是否逃逸由移动阶段判断）
// - 目录（含指向目录的符号链接）、设备、管道、socket 不返回
// - ExcludeFiles 中的文件不返回
// - 递归模式下不进入隐藏目录（名字以 '.' 开头）与排除目录
// - root 本身不可读时返回错误；其余错误交给 OnError
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func Scan(root string, opt Options) ([]domain.FileRecord, error) {
	root = filepath.Clean(root)
	if !opt.Recursive {
		return scanTop(root, opt)
	}

	excluded := buildExcluded(root, opt.Exclude)
	ownFiles := buildExcluded(root, opt.ExcludeFiles)
	files := make([]domain.FileRecord, 0, 128)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			report(opt, path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			return nil
		}

		if isListed(path, ownFiles) {
			return nil
		}
		rec, ok, err := record(root, path, d)
		if err != nil {
			report(opt, path, err)
			return nil
		}
		if ok {
			files = append(files, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func scanTop(root string, opt Options) ([]domain.FileRecord, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	ownFiles := buildExcluded(root, opt.ExcludeFiles)
	files := make([]domain.FileRecord, 0, len(entries))
	for _, d := range entries {
		if d.IsDir() {
			continue
		}
		path := filepath.Join(root, d.Name())
		if isListed(path, ownFiles) {
			continue
		}
		rec, ok, err := record(root, path, d)
		if err != nil {
			report(opt, path, err)
			continue
		}
		if ok {
			files = append(files, rec)
		}
	}

	// os.ReadDir 已按文件名排序；顶层 RelPath 即文件名。
	return files, nil
}

func record(root, path string, d fs.DirEntry) (domain.FileRecord, bool, error) {
	t := d.Type()
	if !t.IsRegular() && t&fs.ModeSymlink == 0 {
		return domain.FileRecord{}, false, nil
	}

	info, err := d.Info()
	if err != nil {
		// 枚举与 stat 之间文件被删：不是错误，直接忽略。
		if errors.Is(err, fs.ErrNotExist) {
			return domain.FileRecord{}, false, nil
		}
		return domain.FileRecord{}, false, err
	}
	if t&fs.ModeSymlink != 0 {
		// 跟随链接：指向目录的不算文件；悬空链接照常返回，由后续阶段报告。
		target, err := os.Stat(path)
		if err == nil {
			if target.IsDir() {
				return domain.FileRecord{}, false, nil
			}
			info = target
		}
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return domain.FileRecord{}, false, err
	}

	name := d.Name()
	return domain.FileRecord{
		AbsPath: path,
		RelPath: rel,
		Name:    name,
		Ext:     strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")),
		Size:    info.Size(),
		ModUnix: info.ModTime().Unix(),
	}, true, nil
}

func report(opt Options, path string, err error) {
	if opt.OnError != nil {
		opt.OnError(path, err)
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isListed(path string, list []string) bool {
	path = filepath.Clean(path)
	for _, x := range list {
		if path == x {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
