package domain

const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

const (
	ReasonSkipList      = "in skip list"
	ReasonSystemFile    = "system or temporary file"
	ReasonUnknownType   = "unknown type"
	ReasonUnsafePath    = "unsafe path"
	ReasonIntegrity     = "integrity check failed"
	ReasonPermission    = "permission denied"
	ReasonNotFound      = "file not found"
	ReasonCanceled      = "canceled"
	ReasonNameExhausted = "destination collision"
	ReasonTargetExists  = "target conflict: destination already exists"
	// ReasonInsufficient 后接具体原因，例如 "insufficient permissions: no read permission"。
	ReasonInsufficient = "insufficient permissions"
)

// MoveOutcome 是单个文件在一次 run 中的唯一结果。
//
// 不变量：每个 FileRecord 恰好产生一个 MoveOutcome。
type MoveOutcome struct {
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Category  Category `json:"category"`
	Signature string   `json:"signature"`

	Status string `json:"status"`
	Reason string `json:"reason"`

	Corrected bool `json:"corrected"`
	CatchAll  bool `json:"catch_all"`
	DryRun    bool `json:"dry_run"`
}

// Skipped 构造一个 skipped 结果（Dst 为空：没有尝试移动）。
func Skipped(src, reason string) MoveOutcome {
	return MoveOutcome{Src: src, Status: StatusSkipped, Reason: reason}
}

// Failed 构造一个 failed 结果。
func Failed(src, dst, reason string) MoveOutcome {
	return MoveOutcome{Src: src, Dst: dst, Status: StatusFailed, Reason: reason}
}
