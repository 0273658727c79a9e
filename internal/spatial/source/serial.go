package source

import (
	"context"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/serialmux"
	"github.com/banshee-data/spatialpointer/internal/spatial/l1samples"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
)

// LineSubscriber is the part of a serial mux the bridge reads from.
type LineSubscriber interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

var _ LineSubscriber = serialmux.SerialMuxInterface(nil)

// SerialBridge decodes JSON sample lines from the tracking bridge.
type SerialBridge struct {
	mux   LineSubscriber
	sink  pipeline.Sink
	clock timeutil.Clock
}

// NewSerialBridge creates a bridge reader. A nil clock uses the real clock.
func NewSerialBridge(mux LineSubscriber, sink pipeline.Sink, clock timeutil.Clock) *SerialBridge {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SerialBridge{mux: mux, sink: sink, clock: clock}
}

// Run forwards sample lines to the sink until ctx is done or the mux
// closes the subscription.
func (b *SerialBridge) Run(ctx context.Context) error {
	id, lines := b.mux.Subscribe()
	defer b.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			b.HandleLine(line)
		}
	}
}

// HandleLine decodes one bridge line. Status and text lines are logged
// at debug level and otherwise ignored.
func (b *SerialBridge) HandleLine(line string) {
	switch serialmux.ClassifyLine(line) {
	case serialmux.LineSamples:
	case serialmux.LineStatus:
		monitoring.Debugf("[serial] status: %s", line)
		return
	default:
		monitoring.Debugf("[serial] %s", line)
		return
	}

	samples, stats, err := l1samples.DecodeLine(line, b.clock.Now(), 0)
	if err != nil {
		stats.Rejected++
		monitoring.Logf("[serial] %v", err)
	}
	if c, ok := b.sink.(DecodeCounter); ok {
		c.CountDecode(stats)
	}
	b.sink.OnBatch(samples)
}
