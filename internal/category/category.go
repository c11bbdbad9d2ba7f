// Package category 把扩展名映射到分类（Documents/Images/...），映射表在一次 run 内不可变。
package category

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"

	"github.com/John-Robertt/sigsort/internal/domain"
)

// Entry 是一条“分类 -> 扩展名列表”的声明。
type Entry struct {
	Category   domain.Category
	Extensions []string
}

// DefaultEntries 是内置分类表（与历史版本保持一致）。
var DefaultEntries = []Entry{
	{Category: domain.CategoryDocuments, Extensions: []string{"pdf", "doc", "docx", "txt", "rtf", "odt", "md", "csv", "xls", "xlsx", "ppt", "pptx"}},
	{Category: domain.CategoryImages, Extensions: []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp", "svg", "ico", "heic", "psd", "dng", "nef"}},
	{Category: domain.CategoryAudio, Extensions: []string{"mp3", "wav", "ogg", "flac", "aac", "m4a"}},
	{Category: domain.CategoryVideo, Extensions: []string{"mp4", "avi", "mkv", "mov", "wmv", "flv", "webm", "m4v"}},
	{Category: domain.CategoryArchives, Extensions: []string{"zip", "rar", "tar", "gz", "7z"}},
	{Category: domain.CategoryCode, Extensions: []string{"py", "js", "html", "css", "java", "c", "cpp", "go", "rs", "php", "rb", "ipynb", "jar"}},
}

// Table 是不可变的扩展名 -> 分类映射。构造后只读，可在多个 worker 间共享。
type Table struct {
	byExt map[string]domain.Category
	order []domain.Category
	exts  map[domain.Category][]string
	def   domain.Category
}

var fold = cases.Fold()

// NormalizeExt 把扩展名规范化为无点、大小写折叠后的形式。
func NormalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimPrefix(ext, ".")
	return fold.String(ext)
}

// New 由声明构造映射表。
//
// 同一扩展名出现在多个分类时，后声明者胜出（与“逐条覆盖”的字典构造语义一致）。
func New(entries []Entry, def domain.Category) Table {
	t := Table{
		byExt: make(map[string]domain.Category, 64),
		order: make([]domain.Category, 0, len(entries)),
		exts:  make(map[domain.Category][]string, len(entries)),
		def:   def,
	}
	for _, e := range entries {
		if _, seen := t.exts[e.Category]; !seen {
			t.order = append(t.order, e.Category)
			t.exts[e.Category] = []string{}
		}
		for _, x := range e.Extensions {
			x = NormalizeExt(x)
			if x == "" {
				continue
			}
			t.byExt[x] = e.Category
			t.exts[e.Category] = append(t.exts[e.Category], x)
		}
	}
	return t
}

// Default 返回内置分类表，默认分类为 Misc。
func Default() Table {
	return New(DefaultEntries, domain.CategoryMisc)
}

// Resolve 返回扩展名所属分类；空扩展名或未登记扩展名返回默认分类。
func (t Table) Resolve(ext string) domain.Category {
	ext = NormalizeExt(ext)
	if ext == "" {
		return t.def
	}
	if c, ok := t.byExt[ext]; ok {
		return c
	}
	return t.def
}

// DefaultCategory 返回兜底分类。
func (t Table) DefaultCategory() domain.Category { return t.def }

// Categories 按声明顺序返回所有分类（不含默认分类，除非它被显式声明）。
func (t Table) Categories() []domain.Category {
	return append([]domain.Category(nil), t.order...)
}

// Extensions 返回某分类最终生效的扩展名（被后续分类抢走的扩展名不计入）。
func (t Table) Extensions(c domain.Category) []string {
	out := make([]string, 0, len(t.exts[c]))
	for _, x := range t.exts[c] {
		if t.byExt[x] == c {
			out = append(out, x)
		}
	}
	return out
}

// Load 读取分类覆盖文件（扁平 JSON：分类名 -> 扩展名数组）。
//
// path 为空时直接返回内置表。文件缺失/不可读/格式非法时记录 WARN 并回退到内置表，
// 第二个返回值表示是否真正使用了覆盖文件。
func Load(path string, logger *slog.Logger) (Table, bool) {
	if strings.TrimSpace(path) == "" {
		return Default(), false
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("分类覆盖文件不可读，使用内置分类", "path", path, "error", err)
		return Default(), false
	}
	entries, err := ParseOverride(b)
	if err != nil {
		logger.Warn("分类覆盖文件格式非法，使用内置分类", "path", path, "error", err)
		return Default(), false
	}
	logger.Debug("已加载分类覆盖文件", "path", path, "categories", len(entries))
	return New(entries, domain.CategoryMisc), true
}

// ParseOverride 解析覆盖文件内容，保留 JSON 对象的键顺序。
func ParseOverride(b []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("无法解析 JSON：%w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("顶层必须是 JSON 对象")
	}

	entries := make([]Entry, 0, 8)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("无法解析 JSON：%w", err)
		}
		name, _ := kt.(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("分类名不能为空")
		}
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return nil, fmt.Errorf("分类名 %q 不能包含路径分隔符", name)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("无法解析分类 %q：%w", name, err)
		}
		var exts []string
		if err := json.Unmarshal(raw, &exts); err != nil || exts == nil {
			return nil, fmt.Errorf("分类 %q 的值必须是字符串数组", name)
		}
		entries = append(entries, Entry{Category: domain.Category(name), Extensions: exts})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("无法解析 JSON：%w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("顶层对象之后存在多余内容")
	}
	return entries, nil
}
