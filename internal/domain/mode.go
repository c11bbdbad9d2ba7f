package domain

import "fmt"

// Mode 决定分类依据与输出目录布局。
type Mode string

const (
	// ModeSignature：只按魔数区分音频/视频，输出 audio/ video/ unknown/。
	ModeSignature Mode = "signature"
	// ModeCategory：按（必要时已纠正的）扩展名查分类表，输出 Documents/ Images/ ... Misc/。
	ModeCategory Mode = "category"
)

// ParseMode 解析模式名；空串返回默认的 ModeSignature。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSignature:
		return ModeSignature, nil
	case ModeCategory:
		return ModeCategory, nil
	default:
		return "", fmt.Errorf("mode 只能是 %s 或 %s，实际是 %q", ModeSignature, ModeCategory, s)
	}
}
