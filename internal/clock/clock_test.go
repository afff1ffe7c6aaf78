package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	calls := 0
	f.OnSleep = func(total int) { calls = total }

	require.NoError(t, f.Sleep(context.Background(), time.Second))
	require.NoError(t, f.Sleep(context.Background(), 2*time.Second))
	f.Advance(time.Minute)

	assert.Equal(t, start.Add(time.Minute+3*time.Second), f.Now())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.Sleeps())
	assert.Equal(t, 2, calls)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, System.Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, NewFake(time.Now()).Sleep(ctx, time.Hour), context.Canceled)
}
