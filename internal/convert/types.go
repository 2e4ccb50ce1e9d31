// Package convert はファイル形式変換のルーティングと実行機能を提供します。
package convert

import "context"

// Request は1件の変換依頼を表す不変の値です。
type Request struct {
	SourcePath string
	OutputPath string
	SourceExt  string
	TargetExt  string
}

// Result はコマンド実行・変換の結果を表します。
// Success が true の場合、依頼された出力ファイルはディスク上に存在します。
// false の場合、出力パスに中途半端なファイルは残りません。
type Result struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	ReturnCode int    `json:"returnCode,omitempty"`
	Timeout    bool   `json:"timeout,omitempty"`
}

// Converter は1つのツール系統による変換を実装します。
type Converter interface {
	Convert(ctx context.Context, req Request) Result
}

// Category はコンバーターの系統を表します。
type Category string

const (
	CategoryArchive  Category = "archives"
	CategoryDocument Category = "documents"
	CategoryImage    Category = "images"
	CategoryMedia    Category = "media"
	CategoryUnknown  Category = "unknown"
)

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Error はクライアントへ返すエラー情報を表します。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
