package run

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/sigsort/internal/app/mover"
	"github.com/John-Robertt/sigsort/internal/app/planner"
	"github.com/John-Robertt/sigsort/internal/category"
	"github.com/John-Robertt/sigsort/internal/config"
	"github.com/John-Robertt/sigsort/internal/domain"
	"github.com/John-Robertt/sigsort/internal/infra/runlock"
	"github.com/John-Robertt/sigsort/internal/logging"
	"github.com/John-Robertt/sigsort/internal/pathsafe"
	"github.com/John-Robertt/sigsort/internal/scan"
	"github.com/John-Robertt/sigsort/internal/signature"
	"github.com/John-Robertt/sigsort/internal/skip"
)

// Deps 是一次 run 的只读依赖（由上层构造，显式传入，不使用全局状态）。
type Deps struct {
	Table  category.Table
	Logger *slog.Logger
	// SelfNames 是工具自身的文件名（例如可执行文件名），总是跳过。
	SelfNames []string
}

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 单个文件的失败只体现在对应条目上，不影响其他文件。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	log := logging.OrDiscard(deps.Logger)

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		OutRoot:   eff.OutRoot,
		Mode:      eff.Mode,
		DryRun:    eff.DryRun,
		Parallel:  eff.Parallel,
		Workers:   workerCount(eff),
		StartedAt: started,
		Items:     make([]domain.MoveOutcome, 0, 128),
	}

	scanStarted := time.Now()
	files, err := scan.Scan(eff.Path, scan.Options{
		Recursive:    eff.Recursive,
		Exclude:      excludeDirs(eff, deps.Table),
		ExcludeFiles: ownFiles(eff),
		OnError: func(path string, err error) {
			log.Warn("扫描时跳过不可读条目", "path", path, "error", err)
		},
	})
	if err != nil {
		rr.Items = append(rr.Items, domain.Failed(eff.Path, "", fmt.Sprintf("scan failed: %v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":     len(files),
			"recursive": eff.Recursive,
		}, time.Since(scanStarted))
	}

	names := append([]string{config.FileName, runlock.FileName}, deps.SelfNames...)
	names = append(names, eff.SkipNames...)
	mv := mover.New(mover.Options{
		Root:     eff.Path,
		OutRoot:  eff.OutRoot,
		Mode:     eff.Mode,
		DryRun:   eff.DryRun,
		Verify:   eff.Verify,
		CatchAll: eff.CatchAll,
		Skip:     skip.Default(names...),
		Claims:   pathsafe.NewClaims(),
		Logger:   log,
	})
	process := func(rec domain.FileRecord) domain.MoveOutcome {
		return processOne(rec, deps.Table, eff.Mode, mv)
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     rr.Workers,
			"parallel":    eff.Parallel,
			"total_files": len(files),
		}, 0)
	}

	c := collector{obs: obs, total: len(files), started: time.Now(), items: rr.Items}
	if eff.Parallel && rr.Workers > 1 {
		runParallel(ctx, files, rr.Workers, process, &c)
	} else {
		runSequential(ctx, files, process, &c)
	}
	rr.Items = c.items

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	log.Info("整理完成",
		"run_id", rr.RunID,
		"total", rr.Summary.Total,
		"moved", rr.Summary.Moved,
		"unknown", rr.Summary.Unknown,
		"skipped", rr.Summary.Skipped,
		"failed", rr.Summary.Failed,
	)
	return rr
}

// processOne：跳过规则/权限 → 识别 → 分类 → 移动。读不了文件头的文件记为 skipped。
func processOne(rec domain.FileRecord, table category.Table, mode domain.Mode, mv *mover.Mover) domain.MoveOutcome {
	if out, skipped := mv.Precheck(rec); skipped {
		return out
	}
	sig, err := signature.Detect(rec.AbsPath)
	if err != nil {
		out := domain.Skipped(rec.AbsPath, "unreadable: "+mover.Reason(err))
		out.Signature = string(signature.Unknown)
		return out
	}
	return mv.Move(planner.Classify(rec, sig, table, mode))
}

type execResult struct {
	res domain.MoveOutcome
	dur time.Duration
}

// collector 是唯一向 items 追加结果、维护计数并发出事件的地方。
type collector struct {
	obs     Observer
	total   int
	started time.Time

	done   int
	counts Counts
	items  []domain.MoveOutcome
}

func (c *collector) add(r execResult) {
	c.done++
	c.items = append(c.items, r.res)
	c.counts.add(r.res)
	if c.obs == nil {
		return
	}
	c.obs.OnFileDone(c.done, c.total, r.res, r.dur)
	if c.done%ProgressEvery == 0 || c.done == c.total {
		c.obs.OnProgress(c.done, c.total, c.counts, time.Since(c.started))
	}
}

// runSequential 在调用方 goroutine 中按枚举顺序逐个处理。
func runSequential(ctx context.Context, files []domain.FileRecord, process func(domain.FileRecord) domain.MoveOutcome, c *collector) {
	for i, rec := range files {
		if ctx.Err() != nil {
			for _, rest := range files[i:] {
				c.add(execResult{res: domain.Skipped(rest.AbsPath, domain.ReasonCanceled)})
			}
			return
		}
		oneStarted := time.Now()
		res := process(rec)
		c.add(execResult{res: res, dur: time.Since(oneStarted)})
	}
}

// runParallel：固定数量 worker 从 jobs 取文件；结果经 results 回到收集者。
// 取消后不再派发，未派发的文件记为 skipped(canceled)；已派发的文件正常完成。
func runParallel(ctx context.Context, files []domain.FileRecord, workers int, process func(domain.FileRecord) domain.MoveOutcome, c *collector) {
	jobs := make(chan domain.FileRecord)
	results := make(chan execResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				oneStarted := time.Now()
				res := process(rec)
				results <- execResult{res: res, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for i, rec := range files {
			// 已取消时优先停止派发（select 在两者都就绪时随机选择）。
			if ctx.Err() != nil {
				cancelRest(files[i:], results)
				return
			}
			select {
			case jobs <- rec:
			case <-ctx.Done():
				cancelRest(files[i:], results)
				return
			}
		}
	}()

	for r := range results {
		c.add(r)
	}
}

func cancelRest(rest []domain.FileRecord, results chan<- execResult) {
	for _, rec := range rest {
		results <- execResult{res: domain.Skipped(rec.AbsPath, domain.ReasonCanceled)}
	}
}

func workerCount(eff config.EffectiveConfig) int {
	if !eff.Parallel || eff.Workers < 1 {
		return 1
	}
	return eff.Workers
}

// ownFiles 返回本工具自己在根目录留下的文件：它们从不参与枚举。
func ownFiles(eff config.EffectiveConfig) []string {
	out := []string{config.FileName, runlock.FileName}
	if eff.ReportPath != "" {
		out = append(out, eff.ReportPath)
	}
	return out
}

// excludeDirs 返回递归扫描时不进入的目录：本模式的全部输出子目录（保证重复运行幂等）+ 配置中的 exclude_dirs。
func excludeDirs(eff config.EffectiveConfig, table category.Table) []string {
	out := make([]string, 0, 16+len(eff.ExcludeDirs))
	for _, d := range planner.OutputDirs(eff.Mode, table) {
		out = append(out, filepath.Join(eff.OutRoot, d))
	}
	if eff.OutRoot != eff.Path {
		out = append(out, eff.OutRoot)
	}
	out = append(out, eff.ExcludeDirs...)
	return out
}
