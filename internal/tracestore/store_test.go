package tracestore

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	require.NoError(t, s.MigrateUp())
}

func TestRecordingRequiresSession(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.RecordBatch(1, []spatial.RawSample{{RawID: 1}})
	s.RecordDelivered([]spatial.CanonicalEvent{{Slot: 0, Phase: spatial.PhaseBegan}})
	require.NoError(t, s.Flush())

	written, dropped := s.Counters()
	assert.Zero(t, written)
	assert.Zero(t, dropped)
	_, err := s.LatestSession()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	id, err := s.StartSession("bench", `{"pool_capacity":2}`, epoch)
	require.NoError(t, err)
	assert.Equal(t, id, s.Session())

	s.RecordBatch(1, []spatial.RawSample{{
		RawID:          42,
		Phase:          spatial.RawActive,
		Kind:           spatial.KindDirectPinch,
		Modifiers:      spatial.ModShift,
		RayDirection:   r3.Vec{Z: 1},
		DevicePosition: r3.Vec{X: 0.5},
		Timestamp:      epoch,
		Batch:          1,
	}})
	rot := quat.Number{Real: 0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5}
	s.RecordDelivered([]spatial.CanonicalEvent{
		{Tick: 1, Slot: 0, Phase: spatial.PhaseBegan, Synthesized: true, RawID: 42, Timestamp: epoch, InteractionRayRotation: rot},
		{Tick: 2, Slot: 0, Phase: spatial.PhaseMoved, Synthesized: true, RawID: 42, Timestamp: epoch, DevicePosition: r3.Vec{Y: 1}},
	})
	require.NoError(t, s.Flush())

	samples, err := s.Samples(id)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, int32(42), samples[0].RawID)
	assert.Equal(t, spatial.KindDirectPinch, samples[0].Kind)
	assert.Equal(t, spatial.ModShift, samples[0].Modifiers)
	assert.Equal(t, uint64(1), samples[0].Batch)
	assert.True(t, epoch.Equal(samples[0].Timestamp))

	events, err := s.Events(id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, spatial.PhaseBegan, events[0].Phase)
	assert.True(t, events[0].Synthesized)
	assert.Equal(t, rot, events[0].InteractionRayRotation)
	assert.Equal(t, uint64(2), events[1].Tick)
	assert.Equal(t, r3.Vec{Y: 1}, events[1].DevicePosition)

	require.NoError(t, s.EndSession(epoch.Add(time.Minute)))
	assert.Empty(t, s.Session())

	sessions, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "bench", sessions[0].Label)
	assert.Equal(t, 1, sessions[0].Samples)
	assert.Equal(t, 2, sessions[0].Events)
	require.NotNil(t, sessions[0].Ended)
	assert.True(t, epoch.Add(time.Minute).Equal(*sessions[0].Ended))

	written, _ := s.Counters()
	assert.Equal(t, uint64(3), written)
}

func TestStartSessionEndsPrevious(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	first, err := s.StartSession("a", "", epoch)
	require.NoError(t, err)
	second, err := s.StartSession("b", "", epoch.Add(time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	latest, err := s.LatestSession()
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	sessions, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].SessionID)
	assert.Nil(t, sessions[0].Ended)
	assert.NotNil(t, sessions[1].Ended)
}

func TestBufferBoundDropsRows(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.SetMaxPending(2)
	_, err := s.StartSession("", "", epoch)
	require.NoError(t, err)

	s.RecordBatch(1, make([]spatial.RawSample, 3))
	s.RecordDelivered(make([]spatial.CanonicalEvent, 1))
	require.NoError(t, s.Flush())

	written, dropped := s.Counters()
	assert.Equal(t, uint64(2), written)
	assert.Equal(t, uint64(2), dropped)
}

func TestFailedFlushKeepsRows(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id, err := s.StartSession("", "", epoch)
	require.NoError(t, err)

	s.RecordBatch(1, []spatial.RawSample{{RawID: 1}, {RawID: 2}})
	s.RecordDelivered([]spatial.CanonicalEvent{{Tick: 1, Phase: spatial.PhaseBegan}})

	_, err = s.DB().Exec(`ALTER TABLE trace_events RENAME TO trace_events_offline`)
	require.NoError(t, err)
	require.Error(t, s.Flush())
	assert.Equal(t, 3, s.Pending())

	// Rows recorded after the failure queue behind the kept ones.
	s.RecordDelivered([]spatial.CanonicalEvent{{Tick: 2, Phase: spatial.PhaseMoved}})

	_, err = s.DB().Exec(`ALTER TABLE trace_events_offline RENAME TO trace_events`)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	written, dropped := s.Counters()
	assert.Equal(t, uint64(4), written)
	assert.Zero(t, dropped)

	samples, err := s.Samples(id)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
	events, err := s.Events(id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Tick)
	assert.Equal(t, uint64(2), events[1].Tick)
}

func TestFailedFlushCountsOverflow(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	_, err := s.StartSession("", "", epoch)
	require.NoError(t, err)

	s.RecordBatch(1, make([]spatial.RawSample, 3))
	s.RecordDelivered(make([]spatial.CanonicalEvent, 2))

	_, err = s.DB().Exec(`ALTER TABLE trace_events RENAME TO trace_events_offline`)
	require.NoError(t, err)
	s.SetMaxPending(4)
	require.Error(t, s.Flush())

	assert.Equal(t, 4, s.Pending())
	written, dropped := s.Counters()
	assert.Zero(t, written)
	assert.Equal(t, uint64(1), dropped)

	_, err = s.DB().Exec(`ALTER TABLE trace_events_offline RENAME TO trace_events`)
	require.NoError(t, err)
}

func TestRunFlushesOnCancel(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id, err := s.StartSession("", "", epoch)
	require.NoError(t, err)
	s.RecordDelivered([]spatial.CanonicalEvent{{Tick: 1, Phase: spatial.PhaseBegan}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx, time.Hour))

	events, err := s.Events(id)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	_, err := s.StartSession("routes", "", epoch)
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	rec := testutil.Serve(t, mux, testutil.LoopbackRequest(http.MethodGet, "/debug/trace-sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Active   string    `json:"active"`
		Sessions []Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, s.Session(), body.Active)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "routes", body.Sessions[0].Label)
}
