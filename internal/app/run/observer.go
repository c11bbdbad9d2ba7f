package run

import (
	"time"

	"github.com/John-Robertt/sigsort/internal/config"
	"github.com/John-Robertt/sigsort/internal/domain"
)

// Counts 是进度事件携带的实时计数（由收集 goroutine 单独维护）。
type Counts struct {
	Moved   int
	Unknown int
	Skipped int
	Failed  int
}

// Observer 用于把“运行进度/阶段/文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 所有事件都来自同一个 goroutine（调用方或收集者），实现无需自行加锁。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileDone 在每个文件得出结果时调用（idx 从 1 开始，按完成顺序）。
	OnFileDone(idx, total int, res domain.MoveOutcome, dur time.Duration)
	// OnProgress 每完成 ProgressEvery 个文件以及全部完成时调用一次。
	OnProgress(done, total int, c Counts, elapsed time.Duration)
}

// ProgressEvery 是 OnProgress 的触发间隔（按完成文件数）。
const ProgressEvery = 10

func (c *Counts) add(res domain.MoveOutcome) {
	switch res.Status {
	case domain.StatusSuccess:
		if res.CatchAll {
			c.Unknown++
		} else {
			c.Moved++
		}
	case domain.StatusSkipped:
		c.Skipped++
	case domain.StatusFailed:
		c.Failed++
	}
}
