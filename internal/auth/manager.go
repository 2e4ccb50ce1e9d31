// Package auth はAPIキーによる認証を提供します。
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/file-converter/internal/config"
)

const apiKeyHeader = "X-API-Key"

// Manager はAPIキーの検証を担います。
type Manager struct {
	cfg *config.Config
}

// NewManager は Manager を作成します。
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// Enabled はAPIキー認証が有効かどうかを返します。
// キーが設定されていない場合は開発用に認証を課しません。
func (m *Manager) Enabled() bool {
	return m.cfg.APIKeyHash != "" || m.cfg.APIKey != ""
}

// Verify は提示されたAPIキーが正しいかどうかを返します。
func (m *Manager) Verify(key string) bool {
	if key == "" {
		return false
	}
	if m.cfg.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(m.cfg.APIKeyHash), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(m.cfg.APIKey), []byte(key)) == 1
}

// RequireAPIKey はAPIキーを検証する gin ミドルウェアを返します。
func (m *Manager) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}
		if !m.Verify(c.GetHeader(apiKeyHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "APIキーが無効です。",
			})
			return
		}
		c.Next()
	}
}
