// Package pathsafe 提供两项独立保证：目标路径不逃逸授权根目录；目标文件名在本次 run 内不冲突。
package pathsafe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MaxCounter 是计数后缀的尝试上限（stem_1 .. stem_4），之后改用随机后缀。
const MaxCounter = 4

// Contains 判断 candidate 解析后（符号链接 + ".." 折叠）是否位于 root 之内。
//
// candidate 不要求存在：对其最深的已存在祖先做 EvalSymlinks，再拼回剩余部分。
// 任何解析失败都视为不安全。
func Contains(root, candidate string) bool {
	rootAbs, err := resolve(root)
	if err != nil {
		return false
	}
	candAbs, err := resolve(candidate)
	if err != nil {
		return false
	}
	return within(rootAbs, candAbs)
}

// SafeName 判断 name 是否是“单层”文件名：不含分隔符，不是 "." / ".."。
func SafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// resolve 把 p 变为 absolute + clean，并解析其最深已存在祖先上的符号链接。
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	rest := make([]string, 0, 4)
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return filepath.Clean(resolved), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

// Claims 是本次 run 内已被预留的目标路径集合（并发安全）。
//
// 只保证本进程内唯一；与外部进程之间的竞争由 mover 在真正移动时兜底（不覆盖 + 重试一次）。
type Claims struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func NewClaims() *Claims {
	return &Claims{used: map[string]struct{}{}}
}

// Release 释放一个预留（移动失败后调用，让名字可以被重新分配）。
func (c *Claims) Release(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.used, filepath.Clean(path))
	c.mu.Unlock()
}

// Len 返回当前预留数量（仅用于测试/诊断）。
func (c *Claims) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.used)
}

// 通过可替换的函数指针，让测试能稳定构造随机后缀碰撞。
var (
	randomSuffix = func() string { return uuid.NewString()[:8] }
	lstatFunc    = os.Lstat
)

// UniquePath 在 dir 下为 name 选择一个“此刻不存在且未被预留”的路径，并原子地预留它。
//
// 顺序：name → stem_1.ext … stem_4.ext → stem_<8 hex>.ext。
// claims 为 nil 时只看磁盘（不做进程内预留）。
func UniquePath(dir, name string, claims *Claims) (string, error) {
	dir = filepath.Clean(dir)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if claims != nil {
		claims.mu.Lock()
		defer claims.mu.Unlock()
	}

	try := func(cand string) (bool, error) {
		p := filepath.Join(dir, cand)
		if claims != nil {
			if _, ok := claims.used[p]; ok {
				return false, nil
			}
		}
		if _, err := lstatFunc(p); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		if claims != nil {
			claims.used[p] = struct{}{}
		}
		return true, nil
	}

	candidates := make([]string, 0, MaxCounter+1)
	candidates = append(candidates, name)
	for i := 1; i <= MaxCounter; i++ {
		candidates = append(candidates, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
	for _, cand := range candidates {
		ok, err := try(cand)
		if err != nil {
			return "", err
		}
		if ok {
			return filepath.Join(dir, cand), nil
		}
	}

	// 随机后缀：理论上可能再次碰撞，多试几次即可。
	for i := 0; i < 8; i++ {
		cand := fmt.Sprintf("%s_%s%s", stem, randomSuffix(), ext)
		ok, err := try(cand)
		if err != nil {
			return "", err
		}
		if ok {
			return filepath.Join(dir, cand), nil
		}
	}
	return "", ErrExhausted
}

// ErrExhausted 表示计数与随机后缀都无法得到可用名字。
var ErrExhausted = errors.New("pathsafe: 无可用的目标文件名")
