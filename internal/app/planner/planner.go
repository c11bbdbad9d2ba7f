// Package planner 把“文件 + 魔数识别结果”变成确定的分类结论（不做任何写入/移动）。
package planner

import (
	"sort"
	"strings"

	"github.com/John-Robertt/sigsort/internal/category"
	"github.com/John-Robertt/sigsort/internal/domain"
	"github.com/John-Robertt/sigsort/internal/signature"
)

// Classify 决定文件的分类与最终文件名。
//
// 规则（固定）：
//   - 识别出的类型不接受当前扩展名时，换成该类型的规范扩展名（Corrected=true）
//   - signature 模式：分类取类型声明的分类；未识别 → Unknown（兜底）
//   - category 模式：分类取分类表对（可能已纠正的）扩展名的解析结果；落到默认分类即兜底
func Classify(rec domain.FileRecord, sig signature.Type, table category.Table, mode domain.Mode) domain.ClassificationResult {
	res := domain.ClassificationResult{
		Record:    rec,
		Signature: string(sig),
		FinalName: rec.Name,
	}

	info, known := signature.Lookup(sig)
	ext := rec.Ext
	if known && !info.Accepts(rec.Ext) {
		ext = info.Canonical()
		res.FinalName = rec.Stem() + "." + ext
		res.Corrected = true
	}

	switch mode {
	case domain.ModeCategory:
		res.Category = table.Resolve(ext)
		res.CatchAll = res.Category == table.DefaultCategory()
	default:
		if known {
			res.Category = info.Category
		} else {
			res.Category = domain.CategoryUnknown
			res.CatchAll = true
		}
	}
	return res
}

// DirName 返回分类对应的输出子目录名：signature 模式小写（audio/ video/ unknown/），category 模式原样。
func DirName(mode domain.Mode, c domain.Category) string {
	if mode == domain.ModeCategory {
		return string(c)
	}
	return strings.ToLower(string(c))
}

// OutputDirs 返回本模式下可能创建的全部输出子目录名（排序、去重）。
// 递归扫描用它排除已整理的结果，保证重复运行是幂等的。
func OutputDirs(mode domain.Mode, table category.Table) []string {
	set := map[string]struct{}{}
	if mode == domain.ModeCategory {
		for _, c := range table.Categories() {
			set[DirName(mode, c)] = struct{}{}
		}
		set[DirName(mode, table.DefaultCategory())] = struct{}{}
	} else {
		for _, r := range signature.Rules {
			if info, ok := signature.Lookup(r.Type); ok {
				set[DirName(mode, info.Category)] = struct{}{}
			}
		}
		set[DirName(mode, domain.CategoryUnknown)] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
