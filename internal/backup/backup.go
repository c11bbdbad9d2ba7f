// Package backup 在整理前为源目录做一次完整备份（目录拷贝或 zip）。
//
// 备份放在源目录的父目录下，名字带随机后缀，避免与已有备份冲突，也不会被本次扫描到。
package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/sigsort/internal/infra/fsx"
	"github.com/John-Robertt/sigsort/internal/infra/runlock"
	"github.com/John-Robertt/sigsort/internal/logging"
)

// Prefix 是备份目录/压缩包的名字前缀。
const Prefix = "sigsort_backup_"

// 测试可替换，用于制造名字冲突。
var newSuffix = func() string { return uuid.NewString()[:8] }

// Options 控制备份方式。
type Options struct {
	// Zip=true 写 <parent>/sigsort_backup_<hex>.zip；否则拷贝为同名目录。
	Zip bool
	// Workers 是目录拷贝的并发上限；<1 视为 1。zip 写入总是串行。
	Workers int
	// Exclude 是相对 root 的目录（例如输出目录），不进入备份。
	Exclude []string
	Logger  *slog.Logger
}

// Create 备份 root 下的所有普通文件，返回备份路径。
// 失败时删除不完整的备份并返回错误。
func Create(ctx context.Context, root string, opt Options) (string, error) {
	log := logging.OrDiscard(opt.Logger)

	files, err := collect(root, opt.Exclude)
	if err != nil {
		return "", fmt.Errorf("枚举待备份文件失败：%w", err)
	}

	name := Prefix + newSuffix()
	parent := filepath.Dir(root)

	if opt.Zip {
		dst := filepath.Join(parent, name+".zip")
		log.Info("创建 zip 备份", "dst", dst, "files", len(files))
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("创建备份压缩包失败：%w", err)
		}
		if err := writeZip(ctx, f, root, files); err != nil {
			_ = os.Remove(dst)
			return "", err
		}
		log.Info("zip 备份完成", "dst", dst)
		return dst, nil
	}

	dst := filepath.Join(parent, name)
	log.Info("创建目录备份", "dst", dst, "files", len(files))
	if err := os.Mkdir(dst, 0o755); err != nil {
		return "", fmt.Errorf("创建备份目录失败：%w", err)
	}
	if err := copyTree(ctx, root, dst, files, opt.Workers); err != nil {
		_ = os.RemoveAll(dst)
		return "", err
	}
	log.Info("目录备份完成", "dst", dst)
	return dst, nil
}

// collect 返回 root 下普通文件的相对路径（不跟随符号链接）。
func collect(root string, exclude []string) ([]string, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, d := range exclude {
		skip[filepath.Clean(d)] = struct{}{}
	}

	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, ok := skip[rel]; ok {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && d.Name() != runlock.FileName {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}

func copyTree(ctx context.Context, root, dst string, files []string, workers int) error {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			target := filepath.Join(dst, rel)
			if err := fsx.EnsureDir(filepath.Dir(target)); err != nil {
				return fmt.Errorf("%s：%w", rel, err)
			}
			if err := fsx.CopyExclusive(filepath.Join(root, rel), target); err != nil {
				return fmt.Errorf("%s：%w", rel, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("目录备份失败：%w", err)
	}
	return nil
}

// writeZip 写完后关闭 f。
func writeZip(ctx context.Context, f *os.File, root string, files []string) (err error) {
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addZipEntry(zw, root, rel); err != nil {
			return fmt.Errorf("zip 备份失败：%s：%w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip 备份失败：%w", err)
	}
	return f.Sync()
}

func addZipEntry(zw *zip.Writer, root, rel string) error {
	src, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
