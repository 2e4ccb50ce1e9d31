// Package ratelimit はクライアントIP単位のリクエスト制限を提供します。
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter はIPごとの rate.Limiter を管理します。
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	done    chan struct{}
}

// New は Limiter を作成します。requests 件 / window の制限を課します。
func New(requests int, window time.Duration) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		done:    make(chan struct{}),
	}
	go l.pruneLoop()
	return l
}

// Stop は整理用ゴルーチンを終了させます。呼び出し後も Allow は使えます。
func (l *Limiter) Stop() {
	close(l.done)
}

// Allow は指定IPからのリクエストを受け付けるかどうかを返します。
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// pruneLoop はしばらく見ていないIPのエントリを破棄します。
func (l *Limiter) pruneLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *Limiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if time.Since(c.lastSeen) > 3*time.Minute {
			delete(l.clients, ip)
		}
	}
}

// Middleware はレート制限を課す gin ミドルウェアを返します。
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMITED",
				"message": "リクエストが多すぎます。しばらく待ってから再試行してください。",
			})
			return
		}
		c.Next()
	}
}
