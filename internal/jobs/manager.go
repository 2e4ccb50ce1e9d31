package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yourusername/file-converter/internal/config"
	"github.com/yourusername/file-converter/internal/convert"
	"github.com/yourusername/file-converter/internal/metrics"
)

const (
	taskTypeConvert = "convert:file"
	queueConvert    = "convert"
)

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	cfg      *config.Config
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	store    *Store
	executor *convert.Executor
	logger   *log.Logger
}

// TaskPayload は変換ジョブのペイロードです。
type TaskPayload struct {
	JobID          string `json:"jobId"`
	SourcePath     string `json:"sourcePath"`
	OutputPath     string `json:"outputPath"`
	SourceExt      string `json:"sourceExt"`
	TargetExt      string `json:"targetExt"`
	OutputFilename string `json:"outputFilename"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, executor *convert.Executor, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if executor == nil {
		return nil, errors.New("executor is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queueConvert: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:      cfg,
		client:   client,
		server:   server,
		mux:      mux,
		store:    store,
		executor: executor,
		logger:   logger,
	}
	mux.HandleFunc(taskTypeConvert, manager.handleConvertTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			if m.logger != nil {
				m.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Enqueue は変換ジョブをキューに投入し、ジョブIDを返します。
func (m *Manager) Enqueue(ctx context.Context, req convert.AsyncRequest) (string, error) {
	if req.SourcePath == "" {
		return "", fmt.Errorf("req.SourcePath is required")
	}

	jobID := uuid.NewString()
	record := &Record{
		JobID:     jobID,
		SourceExt: req.SourceExt,
		TargetExt: req.TargetExt,
		Status:    StatusPending,
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(&TaskPayload{
		JobID:          jobID,
		SourcePath:     req.SourcePath,
		OutputPath:     req.OutputPath,
		SourceExt:      req.SourceExt,
		TargetExt:      req.TargetExt,
		OutputFilename: req.OutputFilename,
	})
	if err != nil {
		return "", err
	}

	// 失敗したジョブの再実行は行わないため MaxRetry は 0 とする
	task := asynq.NewTask(taskTypeConvert, body, asynq.Queue(queueConvert))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return "", err
	}
	return jobID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

func (m *Manager) handleConvertTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	// ワーカーの panic でジョブが PROCESSING のまま残らないようにする
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Printf("panic while processing job %s: %v", payload.JobID, r)
			}
			_ = m.failJob(context.Background(), &payload, "INTERNAL_ERROR", fmt.Sprintf("worker panic: %v", r))
		}
	}()

	if err := m.store.MarkProcessing(ctx, payload.JobID); err != nil {
		return err
	}

	started := time.Now()
	result := m.executor.Execute(ctx, convert.Request{
		SourcePath: payload.SourcePath,
		OutputPath: payload.OutputPath,
		SourceExt:  payload.SourceExt,
		TargetExt:  payload.TargetExt,
	})
	metrics.ObserveConversion(normalizeFormat(payload.SourceExt), normalizeFormat(payload.TargetExt), time.Since(started))

	if !result.Success {
		return m.failJob(ctx, &payload, convert.FailureCode(result), result.Error)
	}

	info, err := os.Stat(payload.OutputPath)
	if err != nil {
		return m.failJob(ctx, &payload, "OUTPUT_NOT_CREATED", "Output file not accessible after conversion")
	}
	return m.finishJob(ctx, &payload, info.Size())
}

func (m *Manager) finishJob(ctx context.Context, payload *TaskPayload, outputSize int64) error {
	m.removeSource(payload)
	m.countOutcome(payload, "success")

	return m.store.MarkSuccess(ctx, payload.JobID, &ResultInfo{
		OutputFilename: payload.OutputFilename,
		OutputSize:     outputSize,
		DownloadURL:    "/api/download/" + payload.OutputFilename,
	})
}

func (m *Manager) failJob(ctx context.Context, payload *TaskPayload, code, message string) error {
	m.removeSource(payload)
	m.countOutcome(payload, "failure")
	metrics.CountError(strings.ToLower(code))

	return m.store.MarkFailed(ctx, payload.JobID, &ErrorInfo{
		Code:    code,
		Message: message,
	})
}

// removeSource は変換元ファイルを削除します。成功・失敗どちらでも呼ばれます。
func (m *Manager) removeSource(payload *TaskPayload) {
	if err := os.Remove(payload.SourcePath); err != nil && !os.IsNotExist(err) {
		if m.logger != nil {
			m.logger.Printf("failed to remove source file %s: %v", payload.SourcePath, err)
		}
	}
}

func (m *Manager) countOutcome(payload *TaskPayload, status string) {
	category := string(m.executor.Registry().CategoryFor(payload.SourceExt))
	metrics.CountProcessed(category, status)
}

func normalizeFormat(ext string) string {
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}
