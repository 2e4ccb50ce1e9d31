package convert

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/file-converter/internal/storage"
)

func serviceFixture(t *testing.T) (*Service, string) {
	t.Helper()
	tempDir := t.TempDir()
	uploadDir := filepath.Join(tempDir, "uploads")
	convertedDir := filepath.Join(tempDir, "converted")
	for _, dir := range []string{uploadDir, convertedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	// ImageMagick の代役として単純にコピーするスクリプト
	script := filepath.Join(tempDir, "convert")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncp \"$1\" \"$2\"\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake convert: %v", err)
	}

	runner := &Runner{}
	registry := NewRegistry(
		NewDocumentConverter(runner, "soffice", convertedDir),
		NewImageConverter(runner, script),
		NewMediaConverter(runner, "ffmpeg"),
		NewArchiveConverter(runner, "7z", "tar"),
	)
	store := storage.NewLocal(uploadDir, convertedDir, 0, 0)
	return NewService(NewExecutor(registry), store, nil), uploadDir
}

func uploadHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("failed to write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("failed to parse multipart form: %v", err)
	}
	return req.MultipartForm.File["file"][0]
}

func TestServiceConvertUpload(t *testing.T) {
	service, uploadDir := serviceFixture(t)

	output, err := service.ConvertUpload(context.Background(), uploadHeader(t, "photo.png", []byte("png-bytes")), ".jpg")
	if err != nil {
		t.Fatalf("ConvertUpload failed: %v", err)
	}

	if output.OutputFilename != output.FileID+".jpg" {
		t.Fatalf("output filename %q does not follow {fileID}{ext}", output.OutputFilename)
	}
	if output.DownloadURL != "/api/download/"+output.OutputFilename {
		t.Fatalf("unexpected downloadUrl: %s", output.DownloadURL)
	}
	if output.OutputSize == 0 {
		t.Fatal("output size should be recorded")
	}
	if _, err := os.Stat(output.OutputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}

	// 変換元は成功時に削除される
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatalf("failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("source file should be removed, found %d entries", len(entries))
	}
}

func TestServiceConvertUploadUnsupportedRemovesSource(t *testing.T) {
	service, uploadDir := serviceFixture(t)

	_, err := service.ConvertUpload(context.Background(), uploadHeader(t, "input.xyz", []byte("data")), ".abc")
	if err == nil {
		t.Fatal("expected error for unsupported pair")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "UNSUPPORTED_CONVERSION" {
		t.Fatalf("unexpected error: %v", err)
	}

	// 失敗しても変換元は残さない
	entries, readErr := os.ReadDir(uploadDir)
	if readErr != nil {
		t.Fatalf("failed to read upload dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("source file should be removed on failure, found %d entries", len(entries))
	}
}

func TestServicePrepareAsyncUpload(t *testing.T) {
	service, _ := serviceFixture(t)

	req, err := service.PrepareAsyncUpload(context.Background(), uploadHeader(t, "photo.png", []byte("png-bytes")), ".jpg")
	if err != nil {
		t.Fatalf("PrepareAsyncUpload failed: %v", err)
	}

	if req.SourceExt != ".png" || req.TargetExt != ".jpg" {
		t.Fatalf("unexpected extensions: %+v", req)
	}
	if !strings.HasSuffix(req.OutputPath, req.OutputFilename) {
		t.Fatalf("output path %q does not end with %q", req.OutputPath, req.OutputFilename)
	}
	// 準備段階では変換元を保持したままにする
	if _, err := os.Stat(req.SourcePath); err != nil {
		t.Fatalf("source file must survive until the worker runs: %v", err)
	}

	service.Discard(req)
	if _, err := os.Stat(req.SourcePath); !os.IsNotExist(err) {
		t.Fatalf("discarded source should be removed, stat err=%v", err)
	}
}
