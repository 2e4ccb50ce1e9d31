package convert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"os"
	"strings"

	"github.com/yourusername/file-converter/internal/storage"
)

// Service は変換コアへの入り口となるサービスです。入力の取り込み、
// 同期変換の実行、非同期ジョブの準備を提供します。
type Service struct {
	executor *Executor
	store    *storage.Local
	logger   *log.Logger
}

// NewService は Service を作成します。
func NewService(executor *Executor, store *storage.Local, logger *log.Logger) *Service {
	return &Service{
		executor: executor,
		store:    store,
		logger:   logger,
	}
}

// ConversionOutput は同期変換の成果を表します。
type ConversionOutput struct {
	FileID         string `json:"fileId"`
	OutputFilename string `json:"outputFilename"`
	OutputPath     string `json:"-"`
	OutputSize     int64  `json:"outputSize"`
	DownloadURL    string `json:"downloadUrl"`
}

// AsyncRequest は非同期ジョブの投入に必要な情報です。
type AsyncRequest struct {
	SourcePath     string
	OutputPath     string
	SourceExt      string
	TargetExt      string
	OutputFilename string
}

// JobScheduler はジョブを非同期キューに投入するためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, req AsyncRequest) (string, error)
}

// ConvertUpload はアップロードされたファイルを同期変換します。
func (s *Service) ConvertUpload(ctx context.Context, file *multipart.FileHeader, targetExt string) (*ConversionOutput, error) {
	stored, err := s.store.SaveUpload(file)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return s.convertStored(ctx, stored, targetExt)
}

// ConvertURL はURLから取得したファイルを同期変換します。
func (s *Service) ConvertURL(ctx context.Context, rawURL, targetExt string) (*ConversionOutput, error) {
	stored, err := s.store.FetchURL(rawURL)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return s.convertStored(ctx, stored, targetExt)
}

func (s *Service) convertStored(ctx context.Context, stored *storage.StoredFile, targetExt string) (*ConversionOutput, error) {
	outputPath, outputFilename := s.store.OutputPath(stored.ID, targetExt)

	result := s.executor.Execute(ctx, Request{
		SourcePath: stored.Path,
		OutputPath: outputPath,
		SourceExt:  stored.Ext,
		TargetExt:  targetExt,
	})

	// Executor は変換元に触れないため、成否に関わらずここで削除する
	if err := s.store.RemoveSource(stored.Path); err != nil && s.logger != nil {
		s.logger.Printf("failed to remove source file %s: %v", stored.Path, err)
	}

	if !result.Success {
		return nil, resultError(result)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	}

	return &ConversionOutput{
		FileID:         stored.ID,
		OutputFilename: outputFilename,
		OutputPath:     outputPath,
		OutputSize:     info.Size(),
		DownloadURL:    "/api/download/" + outputFilename,
	}, nil
}

// PrepareAsyncUpload は入力を保存し、非同期ジョブ用の要求を組み立てます。
// 変換自体は行いません。
func (s *Service) PrepareAsyncUpload(ctx context.Context, file *multipart.FileHeader, targetExt string) (AsyncRequest, error) {
	stored, err := s.store.SaveUpload(file)
	if err != nil {
		return AsyncRequest{}, mapStorageError(err)
	}
	return s.asyncRequestFor(stored, targetExt), nil
}

// PrepareAsyncURL はURLから取得した入力を保存し、非同期ジョブ用の
// 要求を組み立てます。
func (s *Service) PrepareAsyncURL(ctx context.Context, rawURL, targetExt string) (AsyncRequest, error) {
	stored, err := s.store.FetchURL(rawURL)
	if err != nil {
		return AsyncRequest{}, mapStorageError(err)
	}
	return s.asyncRequestFor(stored, targetExt), nil
}

// Discard はジョブ投入に失敗した際に取り込み済みの入力を片付けます。
func (s *Service) Discard(req AsyncRequest) {
	if err := s.store.RemoveSource(req.SourcePath); err != nil && s.logger != nil {
		s.logger.Printf("failed to discard source file %s: %v", req.SourcePath, err)
	}
}

func (s *Service) asyncRequestFor(stored *storage.StoredFile, targetExt string) AsyncRequest {
	outputPath, outputFilename := s.store.OutputPath(stored.ID, targetExt)
	return AsyncRequest{
		SourcePath:     stored.Path,
		OutputPath:     outputPath,
		SourceExt:      stored.Ext,
		TargetExt:      targetExt,
		OutputFilename: outputFilename,
	}
}

// SupportedConversions は系統ごとの対応形式を返します。
func (s *Service) SupportedConversions() map[string]map[string][]string {
	return s.executor.Registry().SupportedConversions()
}

// NormalizeTargetExt はリクエストの format 値を拡張子表記へ正規化します。
func NormalizeTargetExt(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return "", newError("INVALID_INPUT", "変換先フォーマットを指定してください。", nil)
	}
	if !strings.HasPrefix(format, ".") {
		format = "." + format
	}
	return format, nil
}

// FailureCode は変換失敗の種類を機械可読なコードへ分類します。
func FailureCode(result Result) string {
	switch {
	case result.Timeout:
		return "CONVERSION_TIMEOUT"
	case result.Error == "Conversion not supported":
		return "UNSUPPORTED_CONVERSION"
	case strings.HasPrefix(result.Error, "Output file not created"):
		return "OUTPUT_NOT_CREATED"
	default:
		return "CONVERSION_FAILED"
	}
}

func resultError(result Result) error {
	return newError(FailureCode(result), result.Error, nil)
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrFileTooLarge):
		return newError("LIMIT_EXCEEDED", "ファイルサイズが上限を超えています。", err)
	case errors.Is(err, storage.ErrInvalidURL):
		return newError("INVALID_INPUT", "URLからファイルを取得できませんでした。", err)
	case errors.Is(err, storage.ErrInvalidFilename):
		return newError("INVALID_INPUT", "ファイル名が不正です。", err)
	default:
		return err
	}
}
