// Package main は変換APIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/file-converter/internal/config"
	"github.com/yourusername/file-converter/internal/convert"
	"github.com/yourusername/file-converter/internal/storage"
	"github.com/yourusername/file-converter/internal/sweeper"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 作業ディレクトリの用意
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create working directories: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger := log.New(os.Stdout, "", log.LstdFlags)

	// 変換コアの組み立て
	runner := &convert.Runner{
		Timeout: time.Duration(cfg.CommandTimeoutSeconds) * time.Second,
		Limits: convert.ResourceLimits{
			CPUTimeSeconds:    uint64(cfg.CPUTimeLimitSeconds),
			AddressSpaceBytes: uint64(cfg.AddressSpaceLimitBytes),
		},
		Logger: logger,
	}
	registry := convert.NewRegistry(
		convert.NewDocumentConverter(runner, cfg.SofficePath, cfg.ConvertedDir),
		convert.NewImageConverter(runner, cfg.ImageMagickPath),
		convert.NewMediaConverter(runner, cfg.FFmpegPath),
		convert.NewArchiveConverter(runner, cfg.SevenZipPath, cfg.TarPath),
	)
	executor := convert.NewExecutor(registry)

	store := storage.NewLocal(cfg.UploadDir, cfg.ConvertedDir, cfg.MaxFileSize, cfg.MaxURLDownloadBytes)
	service := convert.NewService(executor, store, logger)

	// ジョブキューとワーカーの起動
	manager, rdb, err := setupJobs(cfg, executor, logger)
	if err != nil {
		log.Fatalf("Failed to initialize job queue: %v", err)
	}
	manager.StartWorkers()

	// 期限切れファイルの掃除をバックグラウンドで回す
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sw := sweeper.New(
		[]string{cfg.UploadDir, cfg.ConvertedDir},
		time.Duration(cfg.FileTTLSeconds)*time.Second,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
		logger,
	)
	go sw.Run(sweepCtx)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-API-Key",
	}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	setupRoutes(router, cfg, service, store, manager)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// サーバーの起動
	go func() {
		log.Printf("Starting API server on %s (mode: %s)", srv.Addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// シグナルを受けたら順に片付ける
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Job manager shutdown error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}
	log.Println("Server exited")
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "file-converter-api",
		"version": "0.1.0",
	})
}
