package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/models"
)

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes one host command. A command that ran and exited non-zero
// is not an error; callers inspect ExitCode.
type Runner interface {
	Run(ctx context.Context, args []string, timeout time.Duration) (Result, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, args []string, timeout time.Duration) (Result, error) {
	if len(args) == 0 {
		return Result{}, fmt.Errorf("no command given")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, &models.AppError{
			Code:    models.CodeDeviceCommandFailed,
			Message: fmt.Sprintf("command timed out: %s", strings.Join(args, " ")),
			Details: map[string]any{"stderr": res.Stderr},
			Err:     ctx.Err(),
		}
	}

	if ee := (*exec.ExitError)(nil); errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	if errors.Is(err, exec.ErrNotFound) {
		return res, models.WrapError(models.CodeDeviceCommandFailed, fmt.Sprintf("command not found: %s", args[0]), err)
	}
	return res, models.WrapError(models.CodeDeviceCommandFailed, fmt.Sprintf("failed to run: %s", args[0]), err)
}
