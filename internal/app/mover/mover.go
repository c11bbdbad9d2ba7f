// Package mover 负责单个文件从“分类结论”到“落盘结果”的全过程。
//
// 每次 Move 恰好返回一个 MoveOutcome；任何失败都降级为 skipped/failed，不向上抛出。
package mover

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/John-Robertt/sigsort/internal/app/planner"
	"github.com/John-Robertt/sigsort/internal/domain"
	"github.com/John-Robertt/sigsort/internal/infra/fsx"
	"github.com/John-Robertt/sigsort/internal/logging"
	"github.com/John-Robertt/sigsort/internal/pathsafe"
	"github.com/John-Robertt/sigsort/internal/preflight"
	"github.com/John-Robertt/sigsort/internal/skip"
)

// maxReasonLen 是 "os error: ..." 中原始错误信息的最大长度（按字符）。
const maxReasonLen = 80

// checkFile 检查单个文件的读/移动权限；测试可替换。
var checkFile = preflight.CheckFile

// beforeMove 在真正移动前调用；测试用它在选名与移动之间制造外部抢占。
var beforeMove = func(dst string) {}

// Options 在一次 run 内固定，由所有 worker 共享。
type Options struct {
	// Root 是扫描根目录：源文件必须位于其中。
	Root string
	// OutRoot 是输出根目录：目标文件必须位于其中。
	OutRoot string
	Mode    domain.Mode

	DryRun bool
	// Verify=true 时总是 copy + 校验 + 删除源；否则优先原子移动。
	Verify bool
	// CatchAll=false 时兜底分类的文件直接跳过（reason: unknown type）。
	CatchAll bool

	Skip   skip.Rules
	Claims *pathsafe.Claims
	Logger *slog.Logger
}

// Mover 执行移动。零值不可用，使用 New 构造。
type Mover struct {
	opt Options
	log *slog.Logger
}

func New(opt Options) *Mover {
	if opt.Claims == nil {
		opt.Claims = pathsafe.NewClaims()
	}
	return &Mover{opt: opt, log: logging.OrDiscard(opt.Logger)}
}

// Precheck 在读取文件内容之前执行跳过规则与权限检查。
// skipped=true 时 out 就是该文件的最终结果，调用方不应再识别或移动它。
func (m *Mover) Precheck(rec domain.FileRecord) (out domain.MoveOutcome, skipped bool) {
	if reason, ok := m.opt.Skip.Check(rec.Name); ok {
		return domain.Skipped(rec.AbsPath, reason), true
	}
	if why := checkFile(rec.AbsPath); why != "" {
		return domain.Skipped(rec.AbsPath, domain.ReasonInsufficient+": "+why), true
	}
	return domain.MoveOutcome{}, false
}

// Move 按固定顺序处理一个分类结论：
// 跳过规则/权限 → 兜底开关 → 路径安全 → 建目录 → 选名 → 移动（目标被抢占时换名重试一次）。
// dry-run 在选名之后停止。
func (m *Mover) Move(cls domain.ClassificationResult) (out domain.MoveOutcome) {
	rec := cls.Record
	defer func() {
		if r := recover(); r != nil {
			out = m.annotate(domain.Failed(rec.AbsPath, out.Dst, fmt.Sprintf("internal error: %v", r)), cls)
		}
	}()

	if o, skipped := m.Precheck(rec); skipped {
		return m.annotate(o, cls)
	}
	if cls.CatchAll && !m.opt.CatchAll {
		return m.annotate(domain.Skipped(rec.AbsPath, domain.ReasonUnknownType), cls)
	}

	if !pathsafe.Contains(m.opt.Root, rec.AbsPath) || !pathsafe.SafeName(cls.FinalName) {
		m.log.Warn("拒绝不安全路径", "src", rec.AbsPath, "name", cls.FinalName)
		return m.annotate(domain.Failed(rec.AbsPath, "", domain.ReasonUnsafePath), cls)
	}

	dir := filepath.Join(m.opt.OutRoot, planner.DirName(m.opt.Mode, cls.Category))
	if !m.opt.DryRun {
		if err := fsx.EnsureDir(dir); err != nil {
			return m.annotate(domain.Failed(rec.AbsPath, "", Reason(err)), cls)
		}
	}
	// 建目录之后再检查：输出子目录本身可能是指向外部的符号链接。
	if !pathsafe.Contains(m.opt.OutRoot, dir) {
		m.log.Warn("拒绝逃逸输出目录的目标", "src", rec.AbsPath, "dir", dir)
		return m.annotate(domain.Failed(rec.AbsPath, "", domain.ReasonUnsafePath), cls)
	}

	dst, err := pathsafe.UniquePath(dir, cls.FinalName, m.opt.Claims)
	if err != nil {
		return m.annotate(domain.Failed(rec.AbsPath, "", Reason(err)), cls)
	}

	if m.opt.DryRun {
		o := m.annotate(domain.MoveOutcome{Src: rec.AbsPath, Dst: dst, Status: domain.StatusSuccess}, cls)
		o.DryRun = true
		m.log.Debug("dry-run", "src", rec.AbsPath, "dst", dst)
		return o
	}

	err = m.move(rec.AbsPath, dst)
	if errors.Is(err, fs.ErrExist) {
		// 选名与移动之间被外部进程抢占：换一个名字，只重试一次。
		m.opt.Claims.Release(dst)
		m.log.Debug("目标已被占用，重新选名", "dst", dst)
		dst, err = pathsafe.UniquePath(dir, cls.FinalName, m.opt.Claims)
		if err == nil {
			err = m.move(rec.AbsPath, dst)
		}
	}
	if err != nil {
		m.opt.Claims.Release(dst)
		m.log.Debug("移动失败", "src", rec.AbsPath, "dst", dst, "error", err)
		return m.annotate(domain.Failed(rec.AbsPath, dst, Reason(err)), cls)
	}

	m.log.Debug("已移动", "src", rec.AbsPath, "dst", dst, "category", cls.Category, "corrected", cls.Corrected)
	return m.annotate(domain.MoveOutcome{Src: rec.AbsPath, Dst: dst, Status: domain.StatusSuccess}, cls)
}

func (m *Mover) move(src, dst string) error {
	beforeMove(dst)
	if m.opt.Verify {
		return fsx.MoveVerified(src, dst)
	}
	return fsx.MoveNoReplace(src, dst)
}

func (m *Mover) annotate(o domain.MoveOutcome, cls domain.ClassificationResult) domain.MoveOutcome {
	o.Category = cls.Category
	o.Signature = cls.Signature
	o.Corrected = cls.Corrected
	o.CatchAll = cls.CatchAll
	return o
}

// Reason 把错误收敛为稳定、可读的原因（只区分少数几类，其余截断原文）。
func Reason(err error) string {
	switch {
	case fsx.IsIntegrity(err):
		return domain.ReasonIntegrity
	case fsx.IsPathTypeConflict(err):
		return "target conflict: " + truncate(err.Error(), maxReasonLen)
	case errors.Is(err, pathsafe.ErrExhausted):
		return domain.ReasonNameExhausted
	case errors.Is(err, fs.ErrExist):
		return domain.ReasonTargetExists
	case errors.Is(err, fs.ErrPermission):
		return domain.ReasonPermission
	case errors.Is(err, fs.ErrNotExist):
		return domain.ReasonNotFound
	default:
		return "os error: " + truncate(err.Error(), maxReasonLen)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
