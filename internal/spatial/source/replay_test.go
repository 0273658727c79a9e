package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer(t *testing.T) {
	t.Parallel()
	wall := epoch
	var slept []time.Duration
	p := newPacer(2)
	p.now = func() time.Time { return wall }
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		wall = wall.Add(d)
		return nil
	}

	capture := epoch.Add(-time.Hour)
	ctx := context.Background()
	require.NoError(t, p.wait(ctx, capture))
	require.NoError(t, p.wait(ctx, capture.Add(100*time.Millisecond)))
	require.NoError(t, p.wait(ctx, capture.Add(300*time.Millisecond)))
	// Already late: no sleep.
	wall = wall.Add(time.Second)
	require.NoError(t, p.wait(ctx, capture.Add(400*time.Millisecond)))

	assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, slept)
}

func TestPacer_Unpaced(t *testing.T) {
	t.Parallel()
	p := newPacer(0)
	p.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unpaced replay must not sleep")
		return nil
	}
	require.NoError(t, p.wait(context.Background(), epoch))
	require.NoError(t, p.wait(context.Background(), epoch.Add(time.Hour)))
}

func TestSleepCtx(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}
