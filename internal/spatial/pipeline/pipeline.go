// Package pipeline wires the layers into one explicitly constructed
// object: a producer side fed by sample sources and a driver side ticked
// once per consumer update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/spatialpointer/internal/config"
	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l1samples"
	"github.com/banshee-data/spatialpointer/internal/spatial/l2slots"
	"github.com/banshee-data/spatialpointer/internal/spatial/l3phases"
	"github.com/banshee-data/spatialpointer/internal/spatial/l4delivery"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
)

// Sink is the producer boundary: anything that hands raw batches in.
type Sink interface {
	OnBatch(samples []spatial.RawSample)
}

// Recorder observes the pipeline, e.g. to persist a trace. Calls happen
// on the producer and tick goroutines respectively and must not block.
type Recorder interface {
	RecordBatch(batch uint64, samples []spatial.RawSample)
	RecordDelivered(events []spatial.CanonicalEvent)
}

// Config holds the pipeline parameters.
type Config struct {
	PoolCapacity       int
	QueueDepth         int
	Policy             l3phases.RestartPolicy
	ProjectionDistance float64
	AssertInvariants   bool
	TickRateHz         float64
	Clock              timeutil.Clock

	// IdleTimeout cancels a gesture whose raw id has sent nothing for
	// this long, measured on Clock. Zero keeps silent gestures open.
	IdleTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PoolCapacity:       2,
		QueueDepth:         l4delivery.DefaultQueueDepth,
		Policy:             l3phases.DefaultPolicy(l3phases.DefaultGap),
		ProjectionDistance: l4delivery.DefaultProjectionDistance,
		TickRateHz:         90,
		Clock:              timeutil.RealClock{},
	}
}

// ConfigFromPointer builds a Config from the daemon's JSON configuration.
func ConfigFromPointer(c *config.PointerConfig) (Config, error) {
	policy, err := l3phases.ParsePolicy(c.GetRestartPolicy(), c.GetRestartGap())
	if err != nil {
		return Config{}, fmt.Errorf("restart_policy: %w", err)
	}
	return Config{
		PoolCapacity:       c.GetPoolCapacity(),
		QueueDepth:         c.GetQueueDepth(),
		Policy:             policy,
		ProjectionDistance: c.GetRayProjectionDistance(),
		AssertInvariants:   c.GetAssertInvariants(),
		TickRateHz:         c.GetTickRateHz(),
		Clock:              timeutil.RealClock{},
		IdleTimeout:        c.GetIdleTimeout(),
	}, nil
}

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	Batches       uint64
	Samples       uint64
	PoolExhausted uint64
	QueueFull     uint64
	Released      uint64
	Expired       uint64 // gestures cancelled after IdleTimeout
	Decode        l1samples.DecodeStats
	LiveSlots     int
	Inference     l3phases.Stats
	Delivery      l4delivery.Stats
}

// Pipeline owns the slot table, the inference engine, the per-slot queues
// and the delivery driver.
//
// Lock order is mu → queue mutex. The producer holds mu for a whole batch;
// the tick path takes only queue mutexes, plus mu while releasing slots.
type Pipeline struct {
	cfg Config

	mu     sync.Mutex
	slots  *l2slots.Table
	engine *l3phases.Engine
	batch  uint64
	stats  Stats

	// Per slot, the last sample queued and when it arrived.
	lastSample []spatial.RawSample
	arrived    []time.Time

	queues []*l4delivery.Queue
	driver *l4delivery.Driver

	tickMu    sync.Mutex
	recMu     sync.RWMutex
	recorders []Recorder
	warnOnce  func(key interface{}, format string, v ...interface{})
}

// New creates a pipeline delivering into consumer.
func New(cfg Config, consumer l4delivery.Consumer) *Pipeline {
	def := DefaultConfig()
	if cfg.PoolCapacity <= 0 {
		cfg.PoolCapacity = def.PoolCapacity
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.Policy == nil {
		cfg.Policy = def.Policy
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = def.TickRateHz
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}

	queues := make([]*l4delivery.Queue, cfg.PoolCapacity)
	for i := range queues {
		queues[i] = l4delivery.NewQueue(cfg.QueueDepth)
	}
	return &Pipeline{
		cfg:    cfg,
		slots:  l2slots.NewTable(cfg.PoolCapacity),
		engine: l3phases.NewEngine(cfg.PoolCapacity, cfg.Policy),
		queues: queues,

		lastSample: make([]spatial.RawSample, cfg.PoolCapacity),
		arrived:    make([]time.Time, cfg.PoolCapacity),

		driver: l4delivery.NewDriver(queues, consumer, l4delivery.Options{
			ProjectionDistance: cfg.ProjectionDistance,
			AssertInvariants:   cfg.AssertInvariants,
		}),
		warnOnce: monitoring.Once(),
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// AddRecorder registers r for every later batch and tick.
func (p *Pipeline) AddRecorder(r Recorder) {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	p.recorders = append(p.recorders, r)
}

// OnBatch ingests one batch of raw samples. Samples are stamped with the
// pipeline's batch number and, when unset, the clock's current time.
// Nothing is returned: every problem degrades to drop-and-count.
func (p *Pipeline) OnBatch(samples []spatial.RawSample) {
	if len(samples) == 0 {
		return
	}
	now := p.cfg.Clock.Now()

	p.mu.Lock()
	p.batch++
	batch := p.batch
	p.stats.Batches++
	stamped := make([]spatial.RawSample, len(samples))
	for i, s := range samples {
		s.Batch = batch
		if s.Timestamp.IsZero() {
			s.Timestamp = now
		}
		stamped[i] = s
		p.ingestLocked(s, now)
	}
	p.mu.Unlock()

	p.recMu.RLock()
	for _, r := range p.recorders {
		r.RecordBatch(batch, stamped)
	}
	p.recMu.RUnlock()
}

func (p *Pipeline) ingestLocked(s spatial.RawSample, now time.Time) {
	p.stats.Samples++

	slot, fresh, err := p.slots.Assign(s.RawID)
	if err != nil {
		p.stats.PoolExhausted++
		p.warnOnce(s.RawID, "[pipeline] %v; dropping samples for raw id %d", err, s.RawID)
		return
	}
	if fresh {
		monitoring.Debugf("[pipeline] raw id %d -> slot %d", s.RawID, slot)
	}

	q := p.queues[slot]
	events := p.engine.Infer(slot, s, q.LastQueued())
	if len(events) == 0 {
		p.engine.Commit(slot, s, nil)
		if fresh {
			// A stray terminal for an unseen id must not pin a slot.
			p.releaseLocked(slot)
		}
		return
	}
	if err := q.Append(events...); err != nil {
		// Dropped groups leave the inference stats and gesture memory alone.
		p.stats.QueueFull++
		monitoring.Logf("[pipeline] %v", err)
		if fresh {
			p.releaseLocked(slot)
		}
		return
	}
	p.engine.Commit(slot, s, events)
	p.lastSample[slot] = s
	p.arrived[slot] = now
}

// OnNative decodes count records of the native interop layout from
// payload and ingests them as one batch.
func (p *Pipeline) OnNative(payload []byte, count int) {
	samples, stats := l1samples.DecodeBatch(payload, count, p.cfg.Clock.Now(), 0)
	p.CountDecode(stats)
	if stats.ZeroFill > 0 || stats.Truncated > 0 {
		monitoring.Debugf("[pipeline] %v: %d zero-filled, %d truncated records", spatial.ErrMalformedPayload, stats.ZeroFill, stats.Truncated)
	}
	p.OnBatch(samples)
}

// CountDecode adds decode problems found by a source to the stats.
func (p *Pipeline) CountDecode(stats l1samples.DecodeStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Decode.Records += stats.Records
	p.stats.Decode.ZeroFill += stats.ZeroFill
	p.stats.Decode.Truncated += stats.Truncated
	p.stats.Decode.Rejected += stats.Rejected
}

// Tick runs one delivery update and releases slots that returned to None
// with nothing left to deliver. It returns the delivered events.
func (p *Pipeline) Tick() []spatial.CanonicalEvent {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	if p.cfg.IdleTimeout > 0 {
		p.expireIdle()
	}
	delivered := p.driver.Tick()

	for _, e := range delivered {
		if e.Phase != spatial.PhaseNone {
			continue
		}
		// Re-check under mu: the producer may have queued a new gesture
		// for the same raw id since the driver popped None.
		p.mu.Lock()
		if p.driver.Idle(e.Slot) {
			p.releaseLocked(e.Slot)
		}
		p.mu.Unlock()
	}

	if len(delivered) > 0 {
		p.recMu.RLock()
		for _, r := range p.recorders {
			r.RecordDelivered(delivered)
		}
		p.recMu.RUnlock()
	}
	return delivered
}

// expireIdle queues a synthesized Cancelled for every gesture whose raw id
// went quiet. The slot is then released through the usual None path.
func (p *Pipeline) expireIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.cfg.Clock.Now()
	for slot, q := range p.queues {
		silent := now.Sub(p.arrived[slot])
		if p.arrived[slot].IsZero() || silent < p.cfg.IdleTimeout {
			continue
		}
		if !q.LastQueued().InProgress() {
			continue
		}
		ev := spatial.EventFromSample(slot, spatial.PhaseCancelled, p.lastSample[slot], true)
		if err := q.Append(ev); err != nil {
			p.stats.QueueFull++
			monitoring.Logf("[pipeline] %v", err)
			continue
		}
		p.engine.Forget(slot)
		p.arrived[slot] = time.Time{}
		p.stats.Expired++
		monitoring.Debugf("[pipeline] raw id %d on slot %d silent for %s; cancelled", ev.RawID, slot, silent)
	}
}

func (p *Pipeline) releaseLocked(slot int) {
	if p.slots.Release(slot) {
		p.stats.Released++
	}
	p.engine.Forget(slot)
	p.driver.ResetSlot(slot)
	p.arrived[slot] = time.Time{}
}

// Run ticks at the configured rate until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := p.cfg.Clock.NewTicker(timeutil.FrameInterval(p.cfg.TickRateHz))
	defer ticker.Stop()

	monitoring.Logf("[pipeline] delivering %d slots at %.0f Hz, restart policy %s", p.cfg.PoolCapacity, p.cfg.TickRateHz, p.cfg.Policy)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C():
			p.Tick()
		}
	}
}

// Reset drops every queued event and frees every slot. Called when the
// host stops; the consumer is not told.
func (p *Pipeline) Reset() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	for slot := range p.queues {
		p.engine.Forget(slot)
		p.driver.ResetSlot(slot)
		p.arrived[slot] = time.Time{}
	}
	p.slots.Reset()
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	s := p.stats
	s.LiveSlots = p.slots.Live()
	s.Inference = p.engine.Stats()
	p.mu.Unlock()
	s.Delivery = p.driver.Stats()
	return s
}

// SlotView is a diagnostic snapshot of one slot.
type SlotView struct {
	Slot    int
	RawID   int32
	Live    bool
	State   spatial.PointerState
	Pending []spatial.Phase
	Dropped uint64
}

// Slots returns a diagnostic snapshot of every slot.
func (p *Pipeline) Slots() []SlotView {
	states := p.driver.States()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SlotView, len(p.queues))
	for i, q := range p.queues {
		rec, _ := p.slots.Slot(i)
		out[i] = SlotView{
			Slot:    i,
			RawID:   rec.RawID,
			Live:    rec.Live,
			State:   states[i],
			Pending: q.Phases(),
			Dropped: q.Dropped(),
		}
	}
	return out
}
