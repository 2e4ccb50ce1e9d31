package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
)

// IsTerminal は状態が最終状態かどうかを返します。
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResultInfo はジョブ成功時の成果物情報を保持します。
type ResultInfo struct {
	OutputFilename string `json:"outputFilename"`
	OutputSize     int64  `json:"outputSize"`
	DownloadURL    string `json:"downloadUrl"`
}

// Record はジョブの現在状態を表します。
type Record struct {
	JobID     string      `json:"jobId"`
	SourceExt string      `json:"sourceExt"`
	TargetExt string      `json:"targetExt"`
	Status    Status      `json:"status"`
	Result    *ResultInfo `json:"result,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}
