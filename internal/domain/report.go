package domain

import (
	"encoding/json"
	"time"
)

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	RunID   string `json:"run_id"`
	Path    string `json:"path"`
	OutRoot string `json:"out_root"`
	Mode    Mode   `json:"mode"`
	DryRun  bool   `json:"dry_run"`

	Parallel bool `json:"parallel"`
	Workers  int  `json:"workers"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary RunSummary    `json:"summary"`
	Items   []MoveOutcome `json:"items"`
}

// RunSummary 由 Items 计算得出，不单独维护计数器。
//
// Moved 不含落入兜底分类的文件；兜底的单独计入 Unknown（两者都是 success）。
type RunSummary struct {
	Total     int `json:"total"`
	Moved     int `json:"moved"`
	Unknown   int `json:"unknown"`
	Corrected int `json:"corrected"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	ByCategory map[Category]int `json:"by_category"`

	ElapsedMS   int64   `json:"elapsed_ms"`
	FilesPerSec float64 `json:"files_per_sec"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出
// 3) 计算耗时与吞吐
//
// 注意：不对 items 排序。顺序模式下 items 即枚举顺序；并行模式下为完成顺序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := RunSummary{
		Total:      len(r.Items),
		ByCategory: map[Category]int{},
	}
	for _, it := range r.Items {
		switch it.Status {
		case StatusSuccess:
			if it.CatchAll {
				s.Unknown++
			} else {
				s.Moved++
			}
			if it.Corrected {
				s.Corrected++
			}
			s.ByCategory[it.Category]++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}

	elapsed := r.FinishedAt.Sub(r.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	s.ElapsedMS = elapsed.Milliseconds()
	if elapsed > 0 {
		s.FilesPerSec = float64(len(r.Items)) / elapsed.Seconds()
	}
	r.Summary = s
}

// Problems 返回 skipped/failed 条目（保持 items 原有顺序），用于逐条列出原因。
func (r RunReport) Problems() []MoveOutcome {
	out := make([]MoveOutcome, 0, r.Summary.Skipped+r.Summary.Failed)
	for _, it := range r.Items {
		if it.Status == StatusSkipped || it.Status == StatusFailed {
			out = append(out, it)
		}
	}
	return out
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// items 为 nil 时输出 []，而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []MoveOutcome{}
	}
	return json.Marshal(Alias(r))
}
