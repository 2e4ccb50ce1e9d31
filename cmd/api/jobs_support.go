package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/file-converter/internal/auth"
	"github.com/yourusername/file-converter/internal/config"
	"github.com/yourusername/file-converter/internal/convert"
	"github.com/yourusername/file-converter/internal/jobs"
	"github.com/yourusername/file-converter/internal/metrics"
	"github.com/yourusername/file-converter/internal/ratelimit"
	"github.com/yourusername/file-converter/internal/storage"
)

type convertJobScheduler struct {
	manager *jobs.Manager
}

func (s *convertJobScheduler) Schedule(ctx context.Context, req convert.AsyncRequest) (string, error) {
	return s.manager.Enqueue(ctx, req)
}

func setupJobs(cfg *config.Config, executor *convert.Executor, logger *log.Logger) (*jobs.Manager, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)
	manager, err := jobs.NewManager(cfg, executor, store, logger)
	if err != nil {
		return nil, nil, err
	}
	return manager, redisClient, nil
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, service *convert.Service, store *storage.Local, manager *jobs.Manager) {
	// まずは誰でも叩けるヘルスチェックと指標を登録
	router.GET("/health", handleHealth)
	router.GET("/metrics", metrics.Handler())

	authManager := auth.NewManager(cfg)
	scheduler := &convertJobScheduler{manager: manager}

	api := router.Group("/api")
	api.Use(authManager.RequireAPIKey())
	if cfg.RateLimitEnabled {
		limiter := ratelimit.New(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindow)*time.Second)
		api.Use(limiter.Middleware())
	}
	{
		api.POST("/convert", convert.ConvertHandler(service))
		api.POST("/convert/async", convert.AsyncConvertHandler(service, scheduler))
		api.GET("/jobs/:id", jobStatusHandler(manager))
		api.GET("/download/:filename", convert.DownloadHandler(store))
		api.GET("/formats", convert.FormatsHandler(service))
	}
}

func jobStatusHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "jobId を指定してください。",
			})
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		payload := gin.H{
			"jobId":     record.JobID,
			"sourceExt": record.SourceExt,
			"targetExt": record.TargetExt,
			"status":    record.Status,
			"updatedAt": record.UpdatedAt,
		}
		if record.Result != nil {
			payload["result"] = record.Result
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
