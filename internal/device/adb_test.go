package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	args    []string
	timeout time.Duration
}

// scriptedRunner answers each call with the next scripted response. Calls
// beyond the script succeed with empty output.
type scriptedRunner struct {
	calls     []call
	responses []response
}

type response struct {
	res Result
	err error
}

func (r *scriptedRunner) Run(_ context.Context, args []string, timeout time.Duration) (Result, error) {
	r.calls = append(r.calls, call{args: append([]string(nil), args...), timeout: timeout})
	if len(r.responses) == 0 {
		return Result{}, nil
	}
	next := r.responses[0]
	r.responses = r.responses[1:]
	return next.res, next.err
}

func (r *scriptedRunner) commands() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = strings.Join(c.args, " ")
	}
	return out
}

func newTestADB(r Runner) *ADB {
	return NewADB(r, Options{
		AdbPath:        "adb",
		Serial:         "emulator-5554",
		WorkDir:        "/sdcard/wl",
		CommandTimeout: time.Second,
	}, zerolog.Nop())
}

func TestADB_TapAndSwipe(t *testing.T) {
	r := &scriptedRunner{}
	a := newTestADB(r)

	require.NoError(t, a.Tap(context.Background(), models.Point{X: 10, Y: 20}))
	require.NoError(t, a.Swipe(context.Background(), models.Point{X: 540, Y: 1800}, models.Point{X: 540, Y: 600}, 300*time.Millisecond))

	want := []string{
		"adb -s emulator-5554 shell input tap 10 20",
		"adb -s emulator-5554 shell input swipe 540 1800 540 600 300",
	}
	if diff := cmp.Diff(want, r.commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, time.Second, r.calls[0].timeout)
}

func TestADB_ShellQuotesArguments(t *testing.T) {
	r := &scriptedRunner{}
	a := newTestADB(r)

	_, err := a.Shell(context.Background(), 5*time.Second, "ls", "-1", "/sdcard/WhatsApp Documents", "it's")
	require.NoError(t, err)

	assert.Equal(t, []string{"adb", "-s", "emulator-5554", "shell", `ls -1 '/sdcard/WhatsApp Documents' 'it'\''s'`}, r.calls[0].args)
	assert.Equal(t, 5*time.Second, r.calls[0].timeout)
}

func TestADB_NonZeroExitIsDeviceCommandFailed(t *testing.T) {
	r := &scriptedRunner{responses: []response{{res: Result{ExitCode: 1, Stderr: "error: device offline"}}}}
	a := newTestADB(r)

	_, err := a.Shell(context.Background(), 0, "mkdir", "-p", "/sdcard/wl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDeviceCommandFailed))

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "error: device offline", appErr.Details["stderr"])
}

func TestADB_LaunchApp(t *testing.T) {
	r := &scriptedRunner{}
	a := newTestADB(r)

	require.NoError(t, a.LaunchApp(context.Background(), "com.whatsapp", "com.whatsapp/.HomeActivity", true))
	require.NoError(t, a.LaunchApp(context.Background(), "com.whatsapp", "", false))

	want := []string{
		"adb -s emulator-5554 shell am force-stop com.whatsapp",
		"adb -s emulator-5554 shell am start -n com.whatsapp/.HomeActivity",
		"adb -s emulator-5554 shell monkey -p com.whatsapp -c android.intent.category.LAUNCHER 1",
	}
	if diff := cmp.Diff(want, r.commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestADB_SnapshotRetriesFailedDump(t *testing.T) {
	xml := "<?xml version='1.0' ?><hierarchy rotation=\"0\"></hierarchy>"
	r := &scriptedRunner{responses: []response{
		{res: Result{ExitCode: 137}},       // dump killed
		{res: Result{}},                    // dump ok
		{res: Result{Stdout: "garbage"}},   // cat without hierarchy
		{res: Result{}},                    // dump ok
		{res: Result{Stdout: xml}},         // cat ok
	}}
	a := newTestADB(r)

	out, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, xml, out)
	assert.Len(t, r.calls, 5)
	assert.Equal(t, "adb -s emulator-5554 shell uiautomator dump /sdcard/wl/window_dump.xml", r.commands()[0])
	assert.Equal(t, "adb -s emulator-5554 shell cat /sdcard/wl/window_dump.xml", r.commands()[4])
}

func TestADB_SnapshotGivesUpAfterRetries(t *testing.T) {
	failing := response{res: Result{ExitCode: 1}}
	r := &scriptedRunner{responses: []response{failing, failing, failing, failing}}
	a := newTestADB(r)

	_, err := a.Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.CodeDeviceCommandFailed, models.CodeOf(err))
	assert.Len(t, r.calls, dumpRetries)
}

func TestADB_SnapshotHonoursCancellation(t *testing.T) {
	r := &scriptedRunner{}
	a := newTestADB(r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.calls)
}

func TestADB_PullWithoutSerial(t *testing.T) {
	r := &scriptedRunner{}
	a := NewADB(r, Options{}, zerolog.Nop())

	require.NoError(t, a.Pull(context.Background(), "/sdcard/Download/chat.txt", "/tmp/run/chat.txt"))
	assert.Equal(t, []string{"adb pull /sdcard/Download/chat.txt /tmp/run/chat.txt"}, r.commands())
	assert.Equal(t, 30*time.Second, r.calls[0].timeout)
}

func TestExecRunner(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2; exit 3"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)

	_, err = ExecRunner{}.Run(context.Background(), []string{"definitely-not-a-binary-wl"}, time.Second)
	assert.Equal(t, models.CodeDeviceCommandFailed, models.CodeOf(err))
}
