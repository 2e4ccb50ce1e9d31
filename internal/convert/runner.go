package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout はサブプロセスの実時間タイムアウトの既定値です。
const DefaultTimeout = 300 * time.Second

// ResourceLimits はサブプロセスに適用する資源上限です。
// ゼロ値の項目は適用されません。
type ResourceLimits struct {
	CPUTimeSeconds    uint64
	AddressSpaceBytes uint64
}

// Runner は外部コマンドを実行し、すべての結末（成功・非ゼロ終了・
// タイムアウト・起動失敗）を Result に正規化します。
type Runner struct {
	Timeout time.Duration
	Limits  ResourceLimits
	Logger  *log.Logger
}

// Run はコマンドを実行します。エラーを呼び出し側へ送出することはなく、
// 失敗はすべて Result として返します。
func (r *Runner) Run(ctx context.Context, command []string) Result {
	if len(command) == 0 {
		return failure("empty command")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return failure(fmt.Sprintf("failed to start command %s: %v", command[0], err))
	}

	// 起動済みの子プロセスにCPU時間・仮想メモリの上限を設定する。
	// 上限超過はOSによる強制終了となり、以降は非ゼロ終了として扱われる。
	if err := applyResourceLimits(cmd.Process.Pid, r.Limits); err != nil && r.Logger != nil {
		r.Logger.Printf("failed to apply resource limits to %s (pid %d): %v", command[0], cmd.Process.Pid, err)
	}

	waitErr := cmd.Wait()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.Timeout = true
		result.Error = fmt.Sprintf("Command timed out after %d seconds: %s",
			int(timeout.Seconds()), strings.Join(command, " "))
		return result
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ReturnCode = exitErr.ExitCode()
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = waitErr.Error()
			}
			result.Error = fmt.Sprintf("Conversion failed: %s", msg)
			return result
		}
		result.Error = waitErr.Error()
		return result
	}

	result.Success = true
	return result
}
