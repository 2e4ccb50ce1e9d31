//go:build !linux

package convert

// Linux以外ではプロセス単位のrlimit相当が利用できないため、
// 実時間タイムアウトのみで保護します。
func applyResourceLimits(pid int, limits ResourceLimits) error {
	return nil
}
