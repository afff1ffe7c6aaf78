package device

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/rs/zerolog"
)

const dumpRetries = 3

type Options struct {
	AdbPath        string
	Serial         string
	WorkDir        string
	CommandTimeout time.Duration
	RetryDelay     time.Duration
}

// ADB drives a device through the adb command line.
type ADB struct {
	runner Runner
	opts   Options
	logger zerolog.Logger
}

var _ Driver = (*ADB)(nil)

func NewADB(runner Runner, opts Options, logger zerolog.Logger) *ADB {
	if opts.AdbPath == "" {
		opts.AdbPath = "adb"
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	return &ADB{runner: runner, opts: opts, logger: logger}
}

func (a *ADB) base() []string {
	args := []string{a.opts.AdbPath}
	if a.opts.Serial != "" {
		args = append(args, "-s", a.opts.Serial)
	}
	return args
}

func (a *ADB) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = a.opts.CommandTimeout
	}
	full := append(a.base(), args...)

	a.logger.Debug().Strs("args", args).Msg("adb")
	res, err := a.runner.Run(ctx, full, timeout)
	if err != nil {
		return res.Stdout, models.WrapError(models.CodeDeviceCommandFailed, "adb "+strings.Join(args, " "), err)
	}
	if res.ExitCode != 0 {
		return res.Stdout, &models.AppError{
			Code:    models.CodeDeviceCommandFailed,
			Message: fmt.Sprintf("adb %s exited with %d", strings.Join(args, " "), res.ExitCode),
			Details: map[string]any{"stderr": strings.TrimSpace(res.Stderr), "exitCode": res.ExitCode},
		}
	}
	return res.Stdout, nil
}

// Shell runs a command on the device. Each argument is quoted for the
// device shell.
func (a *ADB) Shell(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return a.run(ctx, timeout, "shell", strings.Join(quoted, " "))
}

func (a *ADB) Tap(ctx context.Context, p models.Point) error {
	_, err := a.Shell(ctx, 0, "input", "tap", strconv.Itoa(p.X), strconv.Itoa(p.Y))
	return err
}

func (a *ADB) Swipe(ctx context.Context, from, to models.Point, duration time.Duration) error {
	_, err := a.Shell(ctx, 0, "input", "swipe",
		strconv.Itoa(from.X), strconv.Itoa(from.Y),
		strconv.Itoa(to.X), strconv.Itoa(to.Y),
		strconv.FormatInt(duration.Milliseconds(), 10))
	return err
}

// LaunchApp brings pkg to the foreground, stopping it first when restart is
// set. Without an activity the launcher intent is used.
func (a *ADB) LaunchApp(ctx context.Context, pkg, activity string, restart bool) error {
	if restart {
		if _, err := a.Shell(ctx, 0, "am", "force-stop", pkg); err != nil {
			return err
		}
	}
	if activity != "" {
		_, err := a.Shell(ctx, 0, "am", "start", "-n", activity)
		return err
	}
	_, err := a.Shell(ctx, 0, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	return err
}

// Snapshot dumps the current UI tree into the working directory and reads
// it back. uiautomator is flaky, so the dump is retried.
func (a *ADB) Snapshot(ctx context.Context) (string, error) {
	dumpFile := path.Join(a.opts.WorkDir, "window_dump.xml")
	if a.opts.WorkDir == "" {
		dumpFile = "/sdcard/window_dump.xml"
	}

	var lastErr error
	for i := 0; i < dumpRetries; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i > 0 {
			a.logger.Debug().Int("retry", i).Err(lastErr).Msg("UI dump retry")
			if a.opts.RetryDelay > 0 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(a.opts.RetryDelay):
				}
			}
		}

		if _, err := a.Shell(ctx, 0, "uiautomator", "dump", dumpFile); err != nil {
			lastErr = err
			continue
		}
		out, err := a.Shell(ctx, 0, "cat", dumpFile)
		if err != nil {
			lastErr = err
			continue
		}
		if !strings.Contains(out, "<hierarchy") {
			lastErr = fmt.Errorf("dump output has no hierarchy")
			continue
		}
		return out, nil
	}

	return "", models.WrapError(models.CodeDeviceCommandFailed,
		fmt.Sprintf("failed to dump UI after %d attempts", dumpRetries), lastErr)
}

func (a *ADB) Pull(ctx context.Context, remote, local string) error {
	_, err := a.run(ctx, 0, "pull", remote, local)
	return err
}

// shellQuote wraps s in single quotes unless it is made only of characters
// the device shell passes through unchanged.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
