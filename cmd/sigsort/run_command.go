package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/sigsort/internal/app/run"
	"github.com/John-Robertt/sigsort/internal/backup"
	"github.com/John-Robertt/sigsort/internal/category"
	"github.com/John-Robertt/sigsort/internal/config"
	"github.com/John-Robertt/sigsort/internal/domain"
	"github.com/John-Robertt/sigsort/internal/infra/fsx"
	"github.com/John-Robertt/sigsort/internal/infra/runlock"
	"github.com/John-Robertt/sigsort/internal/logging"
	"github.com/John-Robertt/sigsort/internal/preflight"
)

func newRunCommand() *cobra.Command {
	var cli config.CLIArgs
	var yes bool

	cmd := &cobra.Command{
		Use:   "run <dir>",
		Short: "识别并整理目录中的文件",
		Long: `识别 <dir> 中每个文件的真实类型（只看文件头，不看扩展名），纠正错误的扩展名，
再把文件移动到 <dir> 下的分类子目录中。

stdout 是终端时输出汇总表；否则 stdout 只输出一个 RunReport JSON，其余信息走 stderr。
存在单个文件失败时退出码仍为 0；只有前置条件/配置错误才返回非 0。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.Path = args[0]
			f := cmd.Flags()
			cli.ModeSet = f.Changed("mode")
			cli.RecursiveSet = f.Changed("recursive")
			cli.WorkersSet = f.Changed("workers")
			cli.SequentialSet = f.Changed("sequential")
			cli.DryRunSet = f.Changed("dry-run")
			cli.UnknownSet = f.Changed("unknown")
			cli.VerifySet = f.Changed("verify")
			cli.CategoriesSet = f.Changed("categories")
			cli.BackupSet = f.Changed("backup")
			cli.ZipBackupSet = f.Changed("zip-backup")
			cli.LogLevelSet = f.Changed("log-level")
			cli.LogFormatSet = f.Changed("log-format")
			return runSort(cmd, cli, yes)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cli.Mode, "mode", "signature", "分类方式：signature（audio/video/unknown）或 category（Documents/Images/...）")
	f.BoolVarP(&cli.Recursive, "recursive", "r", false, "递归处理子目录（已整理的输出目录总是排除）")
	f.IntVarP(&cli.Workers, "workers", "w", 0, "并行 worker 数（默认 CPU 核数，上限 64）")
	f.BoolVar(&cli.Sequential, "sequential", false, "顺序处理（结果保持枚举顺序）")
	f.BoolVarP(&cli.DryRun, "dry-run", "d", false, "只计算目标路径，不创建目录、不移动文件")
	f.BoolVar(&cli.Unknown, "unknown", true, "把无法识别的文件移到兜底目录；--unknown=false 时原地保留")
	f.StringVarP(&cli.Categories, "categories", "c", "", "分类覆盖文件（JSON：分类名 -> 扩展名数组）")
	f.BoolVarP(&cli.Verify, "verify", "i", false, "移动时先拷贝并校验（大小 + SHA-256），通过后再删除源文件")
	f.BoolVarP(&cli.Backup, "backup", "b", false, "整理前把源目录备份到父目录")
	f.BoolVarP(&cli.ZipBackup, "zip-backup", "z", false, "备份为 zip（隐含 --backup）")
	f.BoolVarP(&yes, "yes", "y", false, "跳过确认提示（stdin 不是终端时从不提示）")
	f.StringVar(&cli.ReportPath, "report", "", "把 RunReport JSON 原子写入该文件")
	f.StringVar(&cli.LogLevel, "log-level", "info", "日志级别：debug|info|warn|error")
	f.StringVar(&cli.LogFormat, "log-format", "text", "日志格式：text|json")

	return cmd
}

func runSort(cmd *cobra.Command, cli config.CLIArgs, yes bool) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	tty := isTerminal(stdout)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return preconditionFailed(stdout, tty, cli.Path, err)
	}

	logger, err := logging.New(logging.Options{Level: eff.LogLevel, Format: eff.LogFormat, Writer: stderr})
	if err != nil {
		return preconditionFailed(stdout, tty, eff.Path, &config.Error{Code: config.ErrCodeInvalid, Path: eff.Path, Err: err})
	}
	if eff.ConfigPath != "" {
		logger.Debug("已读取配置文件", "path", eff.ConfigPath)
	}

	if err := preflight.CheckRoot(eff.Path, !eff.DryRun); err != nil {
		return preconditionFailed(stdout, tty, eff.Path, err)
	}

	table, _ := category.Load(eff.CategoriesPath, logger)

	if !eff.DryRun && !yes && stdinIsTerminal(cmd.InOrStdin()) {
		if !confirm(cmd.InOrStdin(), stderr, describeRun(eff)+"，继续？") {
			fmt.Fprintln(stderr, "已取消。")
			return nil
		}
	}

	// dry-run 不写任何东西：不加锁、不备份。
	if !eff.DryRun {
		lock, err := runlock.Acquire(eff.Path)
		if err != nil {
			if errors.Is(err, runlock.ErrLocked) {
				err = &config.Error{Code: config.ErrCodeRunLocked, Path: eff.Path, Err: err}
			}
			return preconditionFailed(stdout, tty, eff.Path, err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("释放运行锁失败", "path", lock.Path(), "error", err)
			}
		}()

		if eff.Backup {
			dst, err := backup.Create(ctx, eff.Path, backup.Options{
				Zip:     eff.ZipBackup,
				Workers: eff.Workers,
				Exclude: eff.ExcludeDirs,
				Logger:  logger,
			})
			if err != nil {
				return preconditionFailed(stdout, tty, eff.Path, &config.Error{Code: config.ErrCodeBackupFailed, Path: eff.Path, Err: err})
			}
			fmt.Fprintf(stderr, "backup: %s\n", dst)
		}
	}

	var obs run.Observer
	if isTerminal(stderr) {
		obs = newProgressUI(stderr)
	} else {
		obs = newLogObserver(logger)
	}

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{
		Table:     table,
		Logger:    logger,
		SelfNames: selfNames(),
	}, obs)

	if eff.ReportPath != "" {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			// 报告写不出来不影响已完成的移动：照常输出到 stdout，只记录错误。
			logger.Error("写入报告文件失败", "path", eff.ReportPath, "error", err)
		}
	}

	emitReport(stdout, stderr, tty, rr)
	return nil
}

func describeRun(eff config.EffectiveConfig) string {
	s := "将整理 " + eff.Path
	if eff.Recursive {
		s += "（含子目录）"
	}
	s += " 中的文件到分类子目录"
	if eff.Verify {
		s += "，移动时校验完整性"
	}
	if eff.Backup {
		s += "，并先创建备份"
	}
	return s
}

// preconditionFailed：非 TTY 时 stdout 仍输出一个（只含一条失败条目的）RunReport，保持 JSON 契约。
func preconditionFailed(stdout io.Writer, tty bool, path string, err error) error {
	if !tty {
		_ = json.NewEncoder(stdout).Encode(reportForError(path, err))
	}
	return err
}

func reportForError(path string, err error) domain.RunReport {
	now := time.Now().UTC()
	reason := err.Error()
	if code := config.Code(err); code != "" {
		reason = code
	}
	rr := domain.RunReport{
		Path:       path,
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.MoveOutcome{domain.Failed(path, "", reason)},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(abs), filepath.Base(abs), b)
}

// selfNames 返回可执行文件自身的名字：工具放在待整理目录里运行时不应把自己搬走。
func selfNames() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	return []string{filepath.Base(exe)}
}
