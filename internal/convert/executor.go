package convert

import (
	"context"
	"strings"
)

// Executor は変換依頼をレジストリ経由で適切なコンバーターへ振り分ける
// 同期実行の入り口です。
type Executor struct {
	registry *Registry
}

// NewExecutor は Executor を作成します。
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute は変換を実行します。対応していない組み合わせの場合は
// ファイルシステムに一切触れずに失敗を返します。
// 変換元ファイルの後始末は呼び出し側の責務です。
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	converter, _, ok := e.registry.Resolve(strings.ToLower(req.SourceExt), strings.ToLower(req.TargetExt))
	if !ok {
		return Result{Success: false, Error: "Conversion not supported"}
	}
	return converter.Convert(ctx, req)
}

// Registry は注入されたレジストリを返します。
func (e *Executor) Registry() *Registry {
	return e.registry
}
