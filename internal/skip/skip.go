// Package skip 以有序的“谓词 -> 原因”规则表决定哪些文件不参与整理。
//
// 新增跳过规则只需追加一条 Rule，不需要改动调用方的分支。
package skip

import (
	"strings"

	"github.com/John-Robertt/sigsort/internal/domain"
)

// Rule 是一条跳过规则：Match 命中即以 Reason 跳过。
type Rule struct {
	Name   string
	Reason string
	Match  func(name string) bool
}

// Rules 按顺序求值，第一个命中者决定原因。
type Rules []Rule

// SystemNames 是固定跳过的系统文件（小写比较）。
var SystemNames = []string{"desktop.ini", "thumbs.db", ".ds_store"}

// Default 构造内置规则表；names 是额外的显式跳过集合（工具自身的文件、配置中的 skip_names 等）。
func Default(names ...string) Rules {
	set := make(map[string]struct{}, len(SystemNames)+len(names))
	for _, n := range SystemNames {
		set[n] = struct{}{}
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}

	return Rules{
		{
			Name:   "skip_list",
			Reason: domain.ReasonSkipList,
			Match: func(name string) bool {
				_, ok := set[strings.ToLower(name)]
				return ok
			},
		},
		{Name: "hidden", Reason: domain.ReasonSystemFile, Match: prefix(".")},
		{Name: "office_temp", Reason: domain.ReasonSystemFile, Match: prefix("~$")},
		{Name: "resource_fork", Reason: domain.ReasonSystemFile, Match: prefix("._")},
		{Name: "backup_tilde", Reason: domain.ReasonSystemFile, Match: suffix("~")},
		{Name: "tmp", Reason: domain.ReasonSystemFile, Match: suffix(".tmp")},
		{Name: "lock", Reason: domain.ReasonSystemFile, Match: suffix(".lock")},
	}
}

// Check 返回第一个命中规则的原因。
func (rs Rules) Check(name string) (string, bool) {
	for _, r := range rs {
		if r.Match != nil && r.Match(name) {
			return r.Reason, true
		}
	}
	return "", false
}

func prefix(p string) func(string) bool {
	return func(name string) bool { return strings.HasPrefix(name, p) }
}

func suffix(s string) func(string) bool {
	return func(name string) bool { return strings.HasSuffix(strings.ToLower(name), s) }
}
