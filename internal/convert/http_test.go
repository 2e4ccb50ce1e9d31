package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubConvertService struct {
	output     *ConversionOutput
	asyncReq   AsyncRequest
	err        error
	discarded  []AsyncRequest
	lastURL    string
	lastFile   string
	lastTarget string
}

func (s *stubConvertService) ConvertUpload(ctx context.Context, file *multipart.FileHeader, targetExt string) (*ConversionOutput, error) {
	s.lastFile = file.Filename
	s.lastTarget = targetExt
	return s.output, s.err
}

func (s *stubConvertService) ConvertURL(ctx context.Context, rawURL, targetExt string) (*ConversionOutput, error) {
	s.lastURL = rawURL
	s.lastTarget = targetExt
	return s.output, s.err
}

func (s *stubConvertService) PrepareAsyncUpload(ctx context.Context, file *multipart.FileHeader, targetExt string) (AsyncRequest, error) {
	s.lastFile = file.Filename
	s.lastTarget = targetExt
	return s.asyncReq, s.err
}

func (s *stubConvertService) PrepareAsyncURL(ctx context.Context, rawURL, targetExt string) (AsyncRequest, error) {
	s.lastURL = rawURL
	s.lastTarget = targetExt
	return s.asyncReq, s.err
}

func (s *stubConvertService) Discard(req AsyncRequest) {
	s.discarded = append(s.discarded, req)
}

func (s *stubConvertService) SupportedConversions() map[string]map[string][]string {
	return map[string]map[string][]string{
		"images": {"from": {".png"}, "to": {".jpg"}},
	}
}

type stubScheduler struct {
	jobID string
	err   error
}

func (s *stubScheduler) Schedule(ctx context.Context, req AsyncRequest) (string, error) {
	return s.jobID, s.err
}

func multipartBody(t *testing.T, filename, format string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader([]byte("dummy"))); err != nil {
		t.Fatalf("failed to write dummy file: %v", err)
	}
	if format != "" {
		if err := writer.WriteField("format", format); err != nil {
			t.Fatalf("failed to write format field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestConvertHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{
		output: &ConversionOutput{
			FileID:         "abc123",
			OutputFilename: "abc123.pdf",
			OutputSize:     42,
			DownloadURL:    "/api/download/abc123.pdf",
		},
	}

	body, contentType := multipartBody(t, "report.docx", "pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert", ConvertHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["downloadUrl"] != "/api/download/abc123.pdf" {
		t.Fatalf("unexpected downloadUrl: %v", payload["downloadUrl"])
	}
	// format は拡張子表記へ正規化されてサービスに渡る
	if service.lastTarget != ".pdf" {
		t.Fatalf("target ext = %q, want .pdf", service.lastTarget)
	}
}

func TestConvertHandlerMissingFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{}

	body, contentType := multipartBody(t, "report.docx", "")
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert", ConvertHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "INVALID_INPUT" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestConvertHandlerMissingInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{}

	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString("format=pdf"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert", ConvertHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestConvertHandlerURLInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{
		output: &ConversionOutput{FileID: "abc123", OutputFilename: "abc123.jpg"},
	}

	form := "format=jpg&url=https%3A%2F%2Fexample.com%2Fphoto.png"
	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert", ConvertHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if service.lastURL != "https://example.com/photo.png" {
		t.Fatalf("unexpected url passed to service: %q", service.lastURL)
	}
}

func TestConvertHandlerUnsupported(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{
		err: newError("UNSUPPORTED_CONVERSION", "Conversion not supported", nil),
	}

	body, contentType := multipartBody(t, "input.xyz", "abc")
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert", ConvertHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "UNSUPPORTED_CONVERSION" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestAsyncConvertHandlerAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{
		asyncReq: AsyncRequest{SourcePath: "/tmp/in", OutputPath: "/tmp/out"},
	}
	scheduler := &stubScheduler{jobID: "job-123"}

	body, contentType := multipartBody(t, "report.docx", "pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/convert/async", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert/async", AsyncConvertHandler(service, scheduler))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["jobId"] != "job-123" {
		t.Fatalf("unexpected jobId: %s", payload["jobId"])
	}
	if payload["statusUrl"] != "/api/jobs/job-123" {
		t.Fatalf("unexpected statusUrl: %s", payload["statusUrl"])
	}
	if len(service.discarded) != 0 {
		t.Fatal("input must not be discarded on success")
	}
}

func TestAsyncConvertHandlerScheduleFailureDiscardsInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubConvertService{
		asyncReq: AsyncRequest{SourcePath: "/tmp/in"},
	}
	scheduler := &stubScheduler{err: errors.New("queue unavailable")}

	body, contentType := multipartBody(t, "report.docx", "pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/convert/async", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/convert/async", AsyncConvertHandler(service, scheduler))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(service.discarded) != 1 {
		t.Fatalf("expected ingested input to be discarded, got %d", len(service.discarded))
	}
}

func TestNormalizeTargetExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"pdf", ".pdf", true},
		{".pdf", ".pdf", true},
		{" PDF ", ".pdf", true},
		{"tar.gz", ".tar.gz", true},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeTargetExt(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("NormalizeTargetExt(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if err == nil && got != tt.want {
			t.Fatalf("NormalizeTargetExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFailureCode(t *testing.T) {
	tests := []struct {
		result Result
		want   string
	}{
		{Result{Timeout: true, Error: "Command timed out after 300 seconds: x"}, "CONVERSION_TIMEOUT"},
		{Result{Error: "Conversion not supported"}, "UNSUPPORTED_CONVERSION"},
		{Result{Error: "Output file not created by LibreOffice"}, "OUTPUT_NOT_CREATED"},
		{Result{Error: "Conversion failed: boom"}, "CONVERSION_FAILED"},
	}
	for _, tt := range tests {
		if got := FailureCode(tt.result); got != tt.want {
			t.Fatalf("FailureCode(%q) = %s, want %s", tt.result.Error, got, tt.want)
		}
	}
}
