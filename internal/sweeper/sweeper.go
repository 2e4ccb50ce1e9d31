// Package sweeper は保存期限を過ぎた一時ファイルを定期的に削除します。
package sweeper

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Sweeper は対象ディレクトリ内の古いファイルを掃除します。
type Sweeper struct {
	dirs     []string
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// New は Sweeper を作成します。
func New(dirs []string, ttl, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{
		dirs:     dirs,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は ctx が終了するまで一定間隔で掃除を繰り返します。
// 掃除中のエラーや panic でループは止まりません。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepSafely()
		}
	}
}

func (s *Sweeper) sweepSafely() {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Printf("panic during sweep: %v", r)
		}
	}()
	if _, err := s.Sweep(); err != nil && s.logger != nil {
		s.logger.Printf("sweep error: %v", err)
	}
}

// Sweep は全対象ディレクトリを一巡し、削除したファイル数を返します。
func (s *Sweeper) Sweep() (int, error) {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	var lastErr error

	for _, dir := range s.dirs {
		n, err := s.sweepDir(dir, cutoff)
		removed += n
		if err != nil {
			lastErr = err
		}
	}

	if removed > 0 && s.logger != nil {
		s.logger.Printf("cleaned up %d expired files", removed)
	}
	return removed, lastErr
}

func (s *Sweeper) sweepDir(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// 列挙後に消えたファイルは飛ばす
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) && s.logger != nil {
				s.logger.Printf("failed to remove expired file %s: %v", path, err)
			}
			continue
		}
		removed++
	}
	return removed, nil
}
