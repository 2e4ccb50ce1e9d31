//go:build linux

package convert

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// applyResourceLimits は起動済みの子プロセスにrlimitを設定します。
// soft と hard を同じ値にし、超過時はOSが子プロセスを強制終了します。
func applyResourceLimits(pid int, limits ResourceLimits) error {
	if limits.CPUTimeSeconds > 0 {
		rl := unix.Rlimit{Cur: limits.CPUTimeSeconds, Max: limits.CPUTimeSeconds}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &rl, nil); err != nil {
			return fmt.Errorf("set RLIMIT_CPU: %w", err)
		}
	}
	if limits.AddressSpaceBytes > 0 {
		rl := unix.Rlimit{Cur: limits.AddressSpaceBytes, Max: limits.AddressSpaceBytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rl, nil); err != nil {
			return fmt.Errorf("set RLIMIT_AS: %w", err)
		}
	}
	return nil
}
