package convert

import (
	"context"
	"os"
)

var imageInputExts = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".svg", ".ico",
}

var imageOutputExts = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tiff", ".ico", ".pdf",
}

// ImageConverter は ImageMagick による画像変換を行います。
type ImageConverter struct {
	runner      *Runner
	convertPath string
}

// NewImageConverter は ImageConverter を作成します。
func NewImageConverter(runner *Runner, convertPath string) *ImageConverter {
	return &ImageConverter{runner: runner, convertPath: convertPath}
}

// Convert は画像を変換します。ImageMagick は出力パスを直接受け取るため
// リネームは不要です。
func (c *ImageConverter) Convert(ctx context.Context, req Request) Result {
	result := c.runner.Run(ctx, []string{c.convertPath, req.SourcePath, req.OutputPath})
	if !result.Success {
		discardPartial(req.OutputPath)
		return result
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		result.Success = false
		result.Error = "Output file not created by ImageMagick"
		return result
	}
	return result
}

// discardPartial は失敗した変換が残した中途半端な出力を削除します。
func discardPartial(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
