package convert

import (
	"context"
	"os"
)

var videoInputExts = []string{
	".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv", ".webm",
	".m4v", ".3gp", ".f4v", ".m2ts", ".mts", ".ts",
}

var videoOutputExts = []string{
	".mp4", ".avi", ".mov", ".mkv", ".webm", ".gif", ".webp", ".3gp",
}

var audioInputExts = []string{
	".mp3", ".wav", ".ogg", ".m4a", ".flac", ".aac",
	".opus", ".wma", ".aiff", ".ape",
}

var audioOutputExts = []string{
	".mp3", ".wav", ".ogg", ".m4a", ".flac", ".aac",
	".opus", ".wma", ".aiff",
}

// MediaConverter は ffmpeg による動画・音声の変換を行います。
type MediaConverter struct {
	runner     *Runner
	ffmpegPath string
}

// NewMediaConverter は MediaConverter を作成します。
func NewMediaConverter(runner *Runner, ffmpegPath string) *MediaConverter {
	return &MediaConverter{runner: runner, ffmpegPath: ffmpegPath}
}

// Convert はメディアファイルを変換します。動画から音声形式への変換は
// 映像ストリームを落とす音声抽出として扱います。
func (c *MediaConverter) Convert(ctx context.Context, req Request) Result {
	srcVideo := containsExt(videoInputExts, req.SourceExt)
	srcAudio := containsExt(audioInputExts, req.SourceExt)
	dstVideo := containsExt(videoOutputExts, req.TargetExt)
	dstAudio := containsExt(audioOutputExts, req.TargetExt)

	args := []string{c.ffmpegPath, "-i", req.SourcePath, "-y"}

	switch {
	case srcVideo && dstVideo:
		// そのまま変換
	case srcAudio && dstAudio:
		// そのまま変換
	case srcVideo && dstAudio:
		// 音声抽出
		args = append(args, "-vn")
	default:
		return failure("Conversion not supported by FFmpeg")
	}

	args = append(args, req.OutputPath)

	result := c.runner.Run(ctx, args)
	if !result.Success {
		discardPartial(req.OutputPath)
		return result
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		result.Success = false
		result.Error = "Output file not created by FFmpeg"
		return result
	}
	return result
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
