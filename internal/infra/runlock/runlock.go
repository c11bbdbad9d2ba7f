// Package runlock 保证同一根目录同一时刻只有一个整理任务在写。
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileName 是锁文件名（位于被整理的根目录下，扫描时按本工具文件排除）。
const FileName = ".sigsort.lock"

// removeFunc 可在测试中替换，用于观察删除发生时锁的状态。
var removeFunc = os.Remove

// ErrLocked 表示另一个进程持有同一根目录的锁。
var ErrLocked = errors.New("该目录正被另一个 sigsort 进程整理")

// Lock 是已获取的根目录锁。
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire 以非阻塞方式获取 <root>/.sigsort.lock。被占用时返回 ErrLocked。
func Acquire(root string) (*Lock, error) {
	p := filepath.Join(root, FileName)
	fl := flock.New(p)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取运行锁失败：%w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{path: p, fl: fl}, nil
}

// Path 返回锁文件路径。
func (l *Lock) Path() string { return l.path }

// Release 删除锁文件并释放锁。重复调用是安全的。
//
// 必须先删除再解锁：持锁期间删除，其他进程只能在新建的文件上加锁，
// 不会出现两个进程分别锁住新旧两个 inode 的情况。
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	fl := l.fl
	l.fl = nil

	rmErr := removeFunc(l.path)
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("释放运行锁失败：%w", err)
	}
	if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return rmErr
	}
	return nil
}
