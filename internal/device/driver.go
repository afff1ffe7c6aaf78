package device

import (
	"context"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/models"
)

// Driver is everything the export engine needs from a device. All calls
// block until the device has acted or the call failed.
type Driver interface {
	Shell(ctx context.Context, timeout time.Duration, args ...string) (string, error)
	Tap(ctx context.Context, p models.Point) error
	Swipe(ctx context.Context, from, to models.Point, duration time.Duration) error
	LaunchApp(ctx context.Context, pkg, activity string, restart bool) error
	Snapshot(ctx context.Context) (string, error)
	Pull(ctx context.Context, remote, local string) error
}
