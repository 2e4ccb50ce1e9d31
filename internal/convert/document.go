package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var documentInputExts = []string{
	".doc", ".docx", ".odt", ".rtf", ".txt",
	".xls", ".xlsx", ".ods", ".csv",
	".ppt", ".pptx", ".odp",
	".html",
}

var documentOutputExts = []string{
	".pdf", ".docx", ".odt", ".rtf", ".txt", ".html", ".xlsx", ".csv",
}

// DocumentConverter は LibreOffice によるオフィス文書の変換を行います。
type DocumentConverter struct {
	runner      *Runner
	sofficePath string
	outDir      string
}

// NewDocumentConverter は DocumentConverter を作成します。
// outDir は LibreOffice の --outdir に渡す共有出力ディレクトリです。
func NewDocumentConverter(runner *Runner, sofficePath, outDir string) *DocumentConverter {
	return &DocumentConverter{
		runner:      runner,
		sofficePath: sofficePath,
		outDir:      outDir,
	}
}

// Convert は文書を変換します。LibreOffice は出力ファイルを入力の
// ベース名で命名するため、期待されるパスを求めて依頼されたパスへ
// リネームします。
func (c *DocumentConverter) Convert(ctx context.Context, req Request) Result {
	format := strings.TrimPrefix(req.TargetExt, ".")
	if format == "" {
		return failure("Unknown output format")
	}

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	expected := filepath.Join(c.outDir, stem+req.TargetExt)

	result := c.runner.Run(ctx, []string{
		c.sofficePath,
		"--headless",
		"--convert-to", format,
		"--outdir", c.outDir,
		req.SourcePath,
	})
	if !result.Success {
		// 失敗時に書きかけの出力を変換済みディレクトリへ残さない
		discardPartial(expected)
		if expected != req.OutputPath {
			discardPartial(req.OutputPath)
		}
		return result
	}

	if expected != req.OutputPath {
		if _, err := os.Stat(expected); err == nil {
			if err := os.Rename(expected, req.OutputPath); err != nil {
				_ = os.Remove(expected)
				result.Success = false
				result.Error = fmt.Sprintf("failed to move output file: %v", err)
				return result
			}
		}
	}

	// 終了コードが0でも出力が生成されないケースがあるため、
	// ファイルの存在を成否の最終判定とする。
	if _, err := os.Stat(req.OutputPath); err != nil {
		result.Success = false
		result.Error = "Output file not created by LibreOffice"
		return result
	}

	return result
}
