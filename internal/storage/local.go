// Package storage はアップロード・変換済みファイルのローカル保存を担います。
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrFileTooLarge はサイズ上限を超えたファイルを表します。
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidURL は取得できないURLを表します。
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidFilename は不正なファイル名を表します。
	ErrInvalidFilename = errors.New("invalid filename")
)

// StoredFile は保存済みの変換元ファイルを表します。
type StoredFile struct {
	ID           string // 保存名の接頭辞となるランダムID
	Path         string
	OriginalName string
	Ext          string // 正規化済み拡張子（例 ".tar.gz"）
	Size         int64
}

// Local はローカルディスク上のアップロード/変換済みディレクトリを管理します。
// ファイル名はランダムIDを接頭辞に持つため、並行リクエスト間で
// 衝突することはありません。
type Local struct {
	UploadDir        string
	ConvertedDir     string
	MaxFileSize      int64
	MaxDownloadBytes int64

	client *http.Client
}

// NewLocal は Local を作成します。
func NewLocal(uploadDir, convertedDir string, maxFileSize, maxDownloadBytes int64) *Local {
	return &Local{
		UploadDir:        uploadDir,
		ConvertedDir:     convertedDir,
		MaxFileSize:      maxFileSize,
		MaxDownloadBytes: maxDownloadBytes,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SaveUpload は multipart ファイルを {ランダムID}_{サニタイズ済み元名} の
// 規約で保存します。
func (l *Local) SaveUpload(file *multipart.FileHeader) (*StoredFile, error) {
	if file == nil {
		return nil, ErrInvalidFilename
	}
	if l.MaxFileSize > 0 && file.Size > l.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	name := SanitizeFilename(file.Filename)
	if name == "" {
		return nil, ErrInvalidFilename
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	return l.saveStream(src, name)
}

// FetchURL はリモートURLからファイルを取得して保存します。
// サイズ上限を超えた場合は途中で打ち切り、保存しません。
func (l *Local) FetchURL(rawURL string) (*StoredFile, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ErrInvalidURL
	}

	resp, err := l.client.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrInvalidURL, resp.StatusCode)
	}
	if l.MaxDownloadBytes > 0 && resp.ContentLength > l.MaxDownloadBytes {
		return nil, ErrFileTooLarge
	}

	name := SanitizeFilename(path.Base(parsed.Path))
	if name == "" || name == "." || name == "/" {
		name = "download"
	}

	limit := l.MaxDownloadBytes
	if limit <= 0 {
		limit = l.MaxFileSize
	}
	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}

	stored, err := l.saveStream(reader, name)
	if err != nil {
		return nil, err
	}
	if limit > 0 && stored.Size > limit {
		_ = os.Remove(stored.Path)
		return nil, ErrFileTooLarge
	}

	// URLに拡張子が無い場合は内容から判定する
	if stored.Ext == "" {
		if err := l.sniffExtension(stored); err != nil {
			_ = os.Remove(stored.Path)
			return nil, err
		}
	}

	return stored, nil
}

func (l *Local) saveStream(src io.Reader, name string) (*StoredFile, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	dstPath := filepath.Join(l.UploadDir, id+"_"+name)

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err != nil {
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("failed to store upload: %w", closeErr)
	}

	return &StoredFile{
		ID:           id,
		Path:         dstPath,
		OriginalName: name,
		Ext:          NormalizedExt(name),
		Size:         size,
	}, nil
}

func (l *Local) sniffExtension(stored *StoredFile) error {
	mtype, err := mimetype.DetectFile(stored.Path)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}
	ext := mtype.Extension()
	if ext == "" {
		return fmt.Errorf("%w: unable to determine file type", ErrInvalidFilename)
	}
	renamed := stored.Path + ext
	if err := os.Rename(stored.Path, renamed); err != nil {
		return fmt.Errorf("failed to rename sniffed file: %w", err)
	}
	stored.Path = renamed
	stored.OriginalName += ext
	stored.Ext = ext
	return nil
}

// OutputPath は変換済みファイルの保存先パスと保存名を返します。
// 保存名は {fileID}{targetExt} の規約です。
func (l *Local) OutputPath(fileID, targetExt string) (string, string) {
	filename := fileID + targetExt
	return filepath.Join(l.ConvertedDir, filename), filename
}

// OpenConverted は保存名を検証したうえで変換済みファイルを開きます。
func (l *Local) OpenConverted(name string) (*os.File, os.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return nil, nil, ErrInvalidFilename
	}
	file, err := os.Open(filepath.Join(l.ConvertedDir, name))
	if err != nil {
		return nil, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, nil, ErrInvalidFilename
	}
	return file, info, nil
}

// RemoveSource は変換元ファイルを削除します。既に存在しない場合は
// エラーになりません。
func (l *Local) RemoveSource(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename はパス区切りや危険な文字を取り除いた名前を返します。
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return ""
	}
	return name
}

// NormalizedExt はファイル名から小文字の拡張子を取り出します。
// .tar.gz / .tar.bz2 のような複合拡張子も1つの拡張子として扱います。
func NormalizedExt(name string) string {
	lower := strings.ToLower(name)
	for _, compound := range []string{".tar.gz", ".tar.bz2", ".tar.xz"} {
		if strings.HasSuffix(lower, compound) {
			return compound
		}
	}
	return filepath.Ext(lower)
}
