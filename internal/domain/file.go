package domain

import "path/filepath"

// FileRecord 描述一次扫描得到的候选文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 创建后不可变；签名识别结果放在 ClassificationResult，而不是回写到这里
type FileRecord struct {
	AbsPath string
	RelPath string
	Name    string // 含扩展名的文件名
	Ext     string // 小写、不带点，例如 "mp4"；无扩展名时为空
	Size    int64
	ModUnix int64
}

// Stem 返回去掉扩展名后的文件名。
func (r FileRecord) Stem() string {
	return r.Name[:len(r.Name)-len(filepath.Ext(r.Name))]
}
