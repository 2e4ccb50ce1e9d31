package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

var archiveInputExts = []string{
	".zip", ".7z", ".rar", ".tar", ".gz", ".bz2", ".xz",
	// storage は .tar.gz 系を複合拡張子として正規化する
	".tar.gz", ".tar.bz2", ".tar.xz",
}

var archiveOutputExts = []string{
	".zip", ".7z", ".tar", ".tar.gz",
}

// ArchiveConverter は書庫形式の変換を行います。入力を一時ディレクトリへ
// 展開し、その内容を目的の形式で再圧縮する二段階の処理です。
type ArchiveConverter struct {
	runner       *Runner
	sevenZipPath string
	tarPath      string
}

// NewArchiveConverter は ArchiveConverter を作成します。
func NewArchiveConverter(runner *Runner, sevenZipPath, tarPath string) *ArchiveConverter {
	return &ArchiveConverter{
		runner:       runner,
		sevenZipPath: sevenZipPath,
		tarPath:      tarPath,
	}
}

// Convert は書庫を変換します。展開用の一時ディレクトリは
// 成否に関わらず削除されます。
func (c *ArchiveConverter) Convert(ctx context.Context, req Request) (result Result) {
	scratch, err := os.MkdirTemp("", "archive-convert-")
	if err != nil {
		return failure(fmt.Sprintf("failed to create scratch directory: %v", err))
	}
	defer os.RemoveAll(scratch)

	// 7z は zip/rar/tar/gz など大半の形式を展開できる
	extract := c.runner.Run(ctx, []string{
		c.sevenZipPath, "x", req.SourcePath, "-o" + scratch, "-y",
	})
	if !extract.Success {
		if !extract.Timeout {
			extract.Error = "Failed to extract input archive"
		}
		return extract
	}

	command, ok := c.compressCommand(scratch, req.OutputPath, req.TargetExt)
	if !ok {
		return failure("Conversion not supported by ArchiveConverter")
	}

	compress := c.runner.Run(ctx, command)
	if !compress.Success {
		discardPartial(req.OutputPath)
		if !compress.Timeout {
			compress.Error = "Failed to create output archive"
		}
		return compress
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		compress.Success = false
		compress.Error = "Failed to create output archive"
		return compress
	}
	return compress
}

func (c *ArchiveConverter) compressCommand(sourceDir, outputPath, targetExt string) ([]string, bool) {
	switch targetExt {
	case ".zip":
		return []string{c.sevenZipPath, "a", "-tzip", outputPath, filepath.Join(sourceDir, "*")}, true
	case ".7z":
		return []string{c.sevenZipPath, "a", "-t7z", outputPath, filepath.Join(sourceDir, "*")}, true
	case ".tar":
		return []string{c.tarPath, "-cf", outputPath, "-C", sourceDir, "."}, true
	case ".tar.gz":
		return []string{c.tarPath, "-czf", outputPath, "-C", sourceDir, "."}, true
	default:
		return nil, false
	}
}
