package source

import (
	"context"
	"time"

	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
)

// PCAPConfig configures ReplayPCAP.
type PCAPConfig struct {
	Path    string
	UDPPort int // 0 replays every UDP packet
	Sink    pipeline.Sink
	Speed   float64 // 0 replays as fast as possible
}

// PCAPStats summarises a replay.
type PCAPStats struct {
	Packets  int
	Batches  int
	Rejected int
}

// pacer sleeps so that capture timestamps are replayed at speed times
// real time.
type pacer struct {
	speed     float64
	firstCap  time.Time
	firstWall time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

func newPacer(speed float64) *pacer {
	return &pacer{speed: speed, sleep: sleepCtx, now: time.Now}
}

func (p *pacer) wait(ctx context.Context, captured time.Time) error {
	if p.speed <= 0 {
		return nil
	}
	if p.firstCap.IsZero() {
		p.firstCap = captured
		p.firstWall = p.now()
		return nil
	}
	offset := time.Duration(float64(captured.Sub(p.firstCap)) / p.speed)
	if d := p.firstWall.Add(offset).Sub(p.now()); d > 0 {
		return p.sleep(ctx, d)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
