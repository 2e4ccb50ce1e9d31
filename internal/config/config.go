// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 認証設定
	APIKey     string // 平文APIキー（開発用）
	APIKeyHash string // bcryptでハッシュ化されたAPIキー（本番用）

	// ファイル設定
	UploadDir           string // アップロードファイルの保存先
	ConvertedDir        string // 変換済みファイルの保存先
	MaxFileSize         int64  // 単一ファイルの最大サイズ（バイト）
	MaxURLDownloadBytes int64  // URL取得時の最大サイズ（バイト）

	// 変換サブプロセス設定
	CommandTimeoutSeconds  int   // サブプロセスの実時間タイムアウト（秒）
	CPUTimeLimitSeconds    int   // サブプロセスのCPU時間上限（秒）
	AddressSpaceLimitBytes int64 // サブプロセスの仮想メモリ上限（バイト）

	// 外部ツールのパス
	SofficePath     string // LibreOffice (soffice) 実行ファイルのパス
	ImageMagickPath string // ImageMagick (convert) 実行ファイルのパス
	FFmpegPath      string // ffmpeg 実行ファイルのパス
	SevenZipPath    string // 7z 実行ファイルのパス
	TarPath         string // tar 実行ファイルのパス

	// ジョブ/キュー設定
	QueueRedisURL     string // Asynq用Redis接続URL
	JobExpireMinutes  int    // ジョブレコードの有効期限（分）
	WorkerConcurrency int    // 同時に実行する変換ワーカー数

	// 保持期間スイープ設定
	SweepIntervalSeconds int // スイープ実行間隔（秒）
	FileTTLSeconds       int // ファイルの保持期間（秒）

	// レート制限設定
	RateLimitEnabled  bool // レート制限の有効/無効
	RateLimitRequests int  // ウィンドウあたりの許可リクエスト数
	RateLimitWindow   int  // レート制限ウィンドウ（秒）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// 認証設定
		APIKey:     getEnv("API_KEY", ""),
		APIKeyHash: getEnv("API_KEY_HASH", ""),

		// ファイル設定
		UploadDir:           getEnv("UPLOAD_DIR", "/tmp/file-converter/uploads"),
		ConvertedDir:        getEnv("CONVERTED_DIR", "/tmp/file-converter/converted"),
		MaxFileSize:         getEnvAsInt64("MAX_FILE_SIZE", 500*1024*1024), // 500MB
		MaxURLDownloadBytes: getEnvAsInt64("MAX_URL_DOWNLOAD_BYTES", 100*1024*1024),

		// 変換サブプロセス設定
		CommandTimeoutSeconds:  getEnvAsInt("COMMAND_TIMEOUT_SECONDS", 300),
		CPUTimeLimitSeconds:    getEnvAsInt("CPU_TIME_LIMIT_SECONDS", 300),
		AddressSpaceLimitBytes: getEnvAsInt64("ADDRESS_SPACE_LIMIT_BYTES", 2*1024*1024*1024), // 2GiB

		// 外部ツールのパス
		SofficePath:     getEnv("SOFFICE_PATH", "soffice"),
		ImageMagickPath: getEnv("IMAGEMAGICK_PATH", "convert"),
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		SevenZipPath:    getEnv("SEVENZIP_PATH", "7z"),
		TarPath:         getEnv("TAR_PATH", "tar"),

		// ジョブ/キュー設定
		QueueRedisURL:     getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		JobExpireMinutes:  getEnvAsInt("JOB_EXPIRE_MINUTES", 60),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),

		// 保持期間スイープ設定
		SweepIntervalSeconds: getEnvAsInt("SWEEP_INTERVAL_SECONDS", 3600),
		FileTTLSeconds:       getEnvAsInt("FILE_TTL_SECONDS", 3600),

		// レート制限設定
		RateLimitEnabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.ConvertedDir == "" {
		return fmt.Errorf("CONVERTED_DIR is required")
	}
	if c.CommandTimeoutSeconds <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT_SECONDS must be greater than 0")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be greater than 0")
	}
	if c.FileTTLSeconds <= 0 {
		return fmt.Errorf("FILE_TTL_SECONDS must be greater than 0")
	}
	if c.RateLimitEnabled && (c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit values must be greater than 0")
	}

	// ローカル開発ではAPIキーは任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.APIKey == "" && c.APIKeyHash == "" {
			return fmt.Errorf("API_KEY or API_KEY_HASH is required in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}

	return nil
}

// EnsureDirectories はアップロード/変換済みディレクトリを作成します。
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.UploadDir, c.ConvertedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
