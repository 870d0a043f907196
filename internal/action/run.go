package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const maxOutputBytes = 4096

type runResult struct {
	exitCode int
	output   string
}

// runCommand executes argv in dir and captures combined output. A zero timeout means no limit.
func runCommand(ctx context.Context, argv []string, dir string, timeout time.Duration) (runResult, error) {
	if len(argv) == 0 {
		return runResult{}, errors.New("command argv cannot be empty")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	result := runResult{output: tail(out.String())}
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%s timed out after %s", argv[0], timeout)
		}
		return result, fmt.Errorf("%s cancelled: %w", argv[0], ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.exitCode = exitErr.ExitCode()
		return result, fmt.Errorf("%s exited with status %d", argv[0], result.exitCode)
	}
	return result, fmt.Errorf("run %s: %w", argv[0], err)
}

// tail trims output and keeps its last maxOutputBytes.
func tail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) <= maxOutputBytes {
		return output
	}
	return "..." + output[len(output)-maxOutputBytes:]
}
