package domain

// ClassificationResult 是对单个 FileRecord 的分类结论（派生数据，不落盘）。
type ClassificationResult struct {
	Record FileRecord

	// Signature 是魔数识别出的类型标签（"mp3"/"mp4"/...），未识别为 "unknown"。
	Signature string
	Category  Category

	// FinalName 是移动后的期望文件名（尚未做冲突消解）。
	// Corrected=true 表示扩展名与真实类型不符，FinalName 已换成规范扩展名。
	FinalName string
	Corrected bool

	// CatchAll 表示该文件落入兜底分类（unknown/ 或默认的 Misc）。
	CatchAll bool
}
