package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/John-Robertt/sigsort/internal/domain"
)

// emitReport 输出一次 run 的结果。
//
// 交互终端：汇总表 + 分类表 + 问题列表。
// 非交互：stdout 只写一个 RunReport JSON，stderr 写一行摘要。
func emitReport(stdout, stderr io.Writer, tty bool, rr domain.RunReport) {
	if !tty {
		if err := json.NewEncoder(stdout).Encode(rr); err != nil {
			fmt.Fprintf(stderr, "输出报告失败：%v\n", err)
		}
		fmt.Fprintln(stderr, summaryLine(rr))
		return
	}
	fmt.Fprint(stdout, renderReport(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	prefix := ""
	if rr.DryRun {
		prefix = "(dry-run) "
	}
	return fmt.Sprintf("%stotal=%d moved=%d unknown=%d corrected=%d skipped=%d failed=%d elapsed=%dms",
		prefix, s.Total, s.Moved, s.Unknown, s.Corrected, s.Skipped, s.Failed, s.ElapsedMS)
}

func renderReport(rr domain.RunReport) string {
	s := rr.Summary
	out := renderTable(
		[]string{"total", "moved", "unknown", "corrected", "skipped", "failed", "files/s"},
		[][]string{{
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Moved),
			strconv.Itoa(s.Unknown),
			strconv.Itoa(s.Corrected),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
			strconv.FormatFloat(s.FilesPerSec, 'f', 1, 64),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	) + "\n"

	if len(s.ByCategory) > 0 {
		cats := make([]string, 0, len(s.ByCategory))
		for c := range s.ByCategory {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			rows = append(rows, []string{c, strconv.Itoa(s.ByCategory[domain.Category(c)])})
		}
		out += renderTable([]string{"category", "files"}, rows, []columnAlignment{alignLeft, alignRight}) + "\n"
	}

	if problems := rr.Problems(); len(problems) > 0 {
		rows := make([][]string, 0, len(problems))
		for _, p := range problems {
			rows = append(rows, []string{p.Status, p.Src, p.Reason})
		}
		out += renderTable([]string{"status", "file", "reason"}, rows, nil) + "\n"
	}

	if rr.DryRun {
		out += "dry-run：未创建目录，未移动任何文件。\n"
	}
	return out
}
