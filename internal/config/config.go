package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/John-Robertt/sigsort/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

// FileName 是根目录下的可选配置文件名。
const FileName = "sigsort.toml"

const (
	// ErrCodeSourceNotFound 表示源目录不存在。
	ErrCodeSourceNotFound = "source_not_found"
	// ErrCodeSourceNotDir 表示源路径存在但不是目录。
	ErrCodeSourceNotDir = "source_not_dir"
	// ErrCodeSourceNoAccess 表示源目录缺少读/写/遍历权限。
	ErrCodeSourceNoAccess = "source_no_access"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeRunLocked 表示另一个进程正在整理同一目录。
	ErrCodeRunLocked = "run_locked"
	// ErrCodeBackupFailed 表示运行前备份失败（不会继续移动任何文件）。
	ErrCodeBackupFailed = "backup_failed"
)

const (
	// MaxWorkers 是并行 worker 数的上限；超出截断。
	MaxWorkers = 64
)

// CLIArgs 保存 CLI 参数值，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --unknown=false 必须能覆盖 unknown = true。
type CLIArgs struct {
	Path string

	Mode    string
	ModeSet bool

	Recursive    bool
	RecursiveSet bool

	Workers    int
	WorkersSet bool

	Sequential    bool
	SequentialSet bool

	DryRun    bool
	DryRunSet bool

	Unknown    bool
	UnknownSet bool

	Verify    bool
	VerifySet bool

	Categories    string
	CategoriesSet bool

	Backup    bool
	BackupSet bool

	ZipBackup    bool
	ZipBackupSet bool

	LogLevel    string
	LogLevelSet bool

	LogFormat    string
	LogFormatSet bool

	// ReportPath 仅由 CLI 控制。
	ReportPath string
}

// FileConfig 对应 sigsort.toml 的解析结构。bool 用指针区分“未写”与“写了 false”。
type FileConfig struct {
	Mode        string   `toml:"mode"`
	Recursive   *bool    `toml:"recursive"`
	Workers     int      `toml:"workers"`
	Sequential  *bool    `toml:"sequential"`
	DryRun      *bool    `toml:"dry_run"`
	Unknown     *bool    `toml:"unknown"`
	Verify      *bool    `toml:"verify"`
	Categories  string   `toml:"categories"`
	OutputDir   string   `toml:"output_dir"`
	ExcludeDirs []string `toml:"exclude_dirs"`
	SkipNames   []string `toml:"skip_names"`
	Backup      *bool    `toml:"backup"`
	ZipBackup   *bool    `toml:"zip_backup"`
	LogLevel    string   `toml:"log_level"`
	LogFormat   string   `toml:"log_format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path    string
	OutRoot string
	Mode    domain.Mode

	Recursive bool
	Parallel  bool
	Workers   int

	DryRun   bool
	CatchAll bool
	Verify   bool

	// CategoriesPath 为空表示使用内置分类表。
	CategoriesPath string
	ExcludeDirs    []string
	SkipNames      []string

	Backup    bool
	ZipBackup bool

	LogLevel  string
	LogFormat string

	ReportPath string

	// ConfigPath 是实际读到的配置文件；不存在时为空。
	ConfigPath string
}

// Error 是配置/前置条件阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeSourceNotFound:
		return fmt.Sprintf("%s：目录不存在 %q", e.Code, e.Path)
	case ErrCodeSourceNotDir:
		return fmt.Sprintf("%s：%q 不是目录", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：%q", e.Code, e.Path)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 <path>/sigsort.toml（可选），然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认。
// output_dir / exclude_dirs / skip_names 仅由配置文件控制；--report 仅由 CLI 控制。
//
// 这里不检查目录是否存在/可写，那是 preflight 的职责。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if strings.TrimSpace(cli.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwdAbs, Err: errors.New("缺少目录参数")}
	}

	absPath := absCleanFrom(cwdAbs, cli.Path)
	cfgPath := filepath.Join(absPath, FileName)

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		cfgPath = ""
	}

	return merge(cwdAbs, absPath, cli, fc, cfgPath)
}

func merge(cwdAbs, absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	errPath := cfgPath
	if errPath == "" {
		errPath = absPath
	}
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: errPath, Err: fmt.Errorf(format, args...)}
	}

	modeStr := fc.Mode
	if cli.ModeSet {
		modeStr = cli.Mode
	}
	mode, err := domain.ParseMode(strings.ToLower(strings.TrimSpace(modeStr)))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: err}
	}

	workers := fc.Workers
	if cli.WorkersSet {
		workers = cli.Workers
	}
	if workers < 0 {
		return EffectiveConfig{}, invalid("workers 不能为负数：%d", workers)
	}
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	outRoot := absPath
	if od := strings.TrimSpace(fc.OutputDir); od != "" {
		if filepath.IsAbs(od) {
			return EffectiveConfig{}, invalid("output_dir 必须是相对路径：%q", od)
		}
		outRoot = filepath.Join(absPath, od)
		if rel, err := filepath.Rel(absPath, outRoot); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return EffectiveConfig{}, invalid("output_dir 不能离开源目录：%q", od)
		}
	}

	// 分类表：CLI 相对路径以 cwd 为基准；配置文件中的相对路径以源目录为基准。
	catPath := ""
	if cli.CategoriesSet && strings.TrimSpace(cli.Categories) != "" {
		catPath = absCleanFrom(cwdAbs, cli.Categories)
	} else if !cli.CategoriesSet && strings.TrimSpace(fc.Categories) != "" {
		catPath = absCleanFrom(absPath, fc.Categories)
	}

	excludes := make([]string, 0, len(fc.ExcludeDirs))
	for _, d := range fc.ExcludeDirs {
		d = strings.Trim(strings.TrimSpace(d), `/\`)
		if d == "" {
			continue
		}
		excludes = append(excludes, filepath.Clean(d))
	}

	reportPath := ""
	if strings.TrimSpace(cli.ReportPath) != "" {
		reportPath = absCleanFrom(cwdAbs, cli.ReportPath)
	}

	skipNames := make([]string, 0, len(fc.SkipNames))
	for _, n := range fc.SkipNames {
		if n = strings.TrimSpace(n); n != "" {
			skipNames = append(skipNames, n)
		}
	}

	backup := pickBool(cli.Backup, cli.BackupSet, fc.Backup, false)
	zipBackup := pickBool(cli.ZipBackup, cli.ZipBackupSet, fc.ZipBackup, false)
	if zipBackup {
		// -z 隐含 -b。
		backup = true
	}

	logLevel := pickString(cli.LogLevel, cli.LogLevelSet, fc.LogLevel, "info")
	logFormat := pickString(cli.LogFormat, cli.LogFormatSet, fc.LogFormat, "text")

	return EffectiveConfig{
		Path:           absPath,
		OutRoot:        outRoot,
		Mode:           mode,
		Recursive:      pickBool(cli.Recursive, cli.RecursiveSet, fc.Recursive, false),
		Parallel:       !pickBool(cli.Sequential, cli.SequentialSet, fc.Sequential, false),
		Workers:        workers,
		DryRun:         pickBool(cli.DryRun, cli.DryRunSet, fc.DryRun, false),
		CatchAll:       pickBool(cli.Unknown, cli.UnknownSet, fc.Unknown, true),
		Verify:         pickBool(cli.Verify, cli.VerifySet, fc.Verify, false),
		CategoriesPath: catPath,
		ExcludeDirs:    excludes,
		SkipNames:      skipNames,
		Backup:         backup,
		ZipBackup:      zipBackup,
		LogLevel:       logLevel,
		LogFormat:      logFormat,
		ReportPath:     reportPath,
		ConfigPath:     cfgPath,
	}, nil
}

func pickBool(cliV, cliSet bool, fileV *bool, def bool) bool {
	if cliSet {
		return cliV
	}
	if fileV != nil {
		return *fileV
	}
	return def
}

func pickString(cliV string, cliSet bool, fileV, def string) string {
	if cliSet && strings.TrimSpace(cliV) != "" {
		return strings.TrimSpace(cliV)
	}
	if strings.TrimSpace(fileV) != "" {
		return strings.TrimSpace(fileV)
	}
	return def
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFile 可在测试中替换，用于模拟权限错误（root 用户下无法用 chmod 复现）。
var readFile = os.ReadFile

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在。不存在不算错误；源路径不是目录、或源目录无权限读取时
// 同样视为不存在，交给 preflight 报告 source_not_dir / source_no_access。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrPermission) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
