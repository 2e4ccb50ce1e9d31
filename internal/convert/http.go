package convert

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/file-converter/internal/storage"
)

// ConvertService は同期変換と非同期ジョブの準備を提供します。
type ConvertService interface {
	ConvertUpload(ctx context.Context, file *multipart.FileHeader, targetExt string) (*ConversionOutput, error)
	ConvertURL(ctx context.Context, rawURL, targetExt string) (*ConversionOutput, error)
	PrepareAsyncUpload(ctx context.Context, file *multipart.FileHeader, targetExt string) (AsyncRequest, error)
	PrepareAsyncURL(ctx context.Context, rawURL, targetExt string) (AsyncRequest, error)
	Discard(req AsyncRequest)
	SupportedConversions() map[string]map[string][]string
}

// ConvertHandler は POST /api/convert のハンドラーを返します。
// 変換を同期で実行し、完了後にダウンロード情報を返します。
func ConvertHandler(svc ConvertService) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, rawURL, targetExt, err := parseConvertInput(c)
		if err != nil {
			respondWithError(c, err)
			return
		}

		var output *ConversionOutput
		if file != nil {
			output, err = svc.ConvertUpload(c.Request.Context(), file, targetExt)
		} else {
			output, err = svc.ConvertURL(c.Request.Context(), rawURL, targetExt)
		}
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"fileId":         output.FileID,
			"outputFilename": output.OutputFilename,
			"outputSize":     output.OutputSize,
			"downloadUrl":    output.DownloadURL,
		})
	}
}

// AsyncConvertHandler は POST /api/convert/async のハンドラーを返します。
// 入力を取り込んでジョブを投入し、ジョブIDを 202 で返します。
func AsyncConvertHandler(svc ConvertService, scheduler JobScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, rawURL, targetExt, err := parseConvertInput(c)
		if err != nil {
			respondWithError(c, err)
			return
		}

		var req AsyncRequest
		if file != nil {
			req, err = svc.PrepareAsyncUpload(c.Request.Context(), file, targetExt)
		} else {
			req, err = svc.PrepareAsyncURL(c.Request.Context(), rawURL, targetExt)
		}
		if err != nil {
			respondWithError(c, err)
			return
		}

		jobID, err := scheduler.Schedule(c.Request.Context(), req)
		if err != nil {
			svc.Discard(req)
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":     jobID,
			"statusUrl": "/api/jobs/" + jobID,
		})
	}
}

// DownloadHandler は GET /api/download/:filename のハンドラーを返します。
func DownloadHandler(store *storage.Local) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")

		file, info, err := store.OpenConverted(filename)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidFilename) || errors.Is(err, os.ErrNotExist) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "FILE_NOT_FOUND",
					"message": "指定されたファイルが見つかりません。",
				})
				return
			}
			respondWithError(c, err)
			return
		}
		defer file.Close()

		encodedName := url.PathEscape(filename)
		c.Header("Content-Type", "application/octet-stream")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", filename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
	}
}

// FormatsHandler は GET /api/formats のハンドラーを返します。
func FormatsHandler(svc ConvertService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"formats": svc.SupportedConversions(),
		})
	}
}

func parseConvertInput(c *gin.Context) (*multipart.FileHeader, string, string, error) {
	targetExt, err := NormalizeTargetExt(c.PostForm("format"))
	if err != nil {
		return nil, "", "", err
	}

	file, fileErr := c.FormFile("file")
	rawURL := strings.TrimSpace(c.PostForm("url"))

	if fileErr != nil && rawURL == "" {
		return nil, "", "", newError("INVALID_INPUT", "ファイルまたはURLを指定してください。", nil)
	}
	if fileErr == nil {
		return file, "", targetExt, nil
	}
	return nil, rawURL, targetExt, nil
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "UNSUPPORTED_CONVERSION":
			status = http.StatusBadRequest
		case "CONVERSION_TIMEOUT":
			status = http.StatusGatewayTimeout
		case "CONVERSION_FAILED", "OUTPUT_NOT_CREATED":
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
