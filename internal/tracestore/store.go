// Package tracestore records pipeline sessions in SQLite: every raw
// batch received and every event delivered, keyed by a session id.
// Recording is buffered in memory and written in one transaction per
// flush so the tick goroutine never waits on disk.
package tracestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// DefaultMaxPending bounds the rows buffered between flushes.
const DefaultMaxPending = 64 * 1024

// ErrNoSession is returned when recording is attempted outside a session.
var ErrNoSession = errors.New("no trace session active")

// Store is a trace database. It implements pipeline.Recorder.
type Store struct {
	db   *sql.DB
	path string

	mu         sync.Mutex
	session    string
	samples    []sampleRow
	events     []spatial.CanonicalEvent
	maxPending int
	dropped    uint64
	written    uint64
}

type sampleRow struct {
	batch uint64
	s     spatial.RawSample
}

// Open opens (creating if needed) the trace database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	s := &Store{db: db, path: path, maxPending: DefaultMaxPending}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("[trace] opened %s", path)
	return s, nil
}

// DB exposes the underlying database for read-only tooling.
func (s *Store) DB() *sql.DB { return s.db }

// SetMaxPending changes the buffer bound; rows beyond it are dropped and
// counted.
func (s *Store) SetMaxPending(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPending = n
}

// StartSession begins a new session and returns its id. An open session
// is ended first.
func (s *Store) StartSession(label, configJSON string, now time.Time) (string, error) {
	if err := s.EndSession(now); err != nil {
		return "", err
	}
	id := uuid.NewString()
	var cfg interface{}
	if configJSON != "" {
		cfg = configJSON
	}
	if _, err := s.db.Exec(
		`INSERT INTO trace_sessions (session_id, started_unix_nanos, label, config_json) VALUES (?, ?, ?, ?)`,
		id, now.UnixNano(), label, cfg,
	); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	s.mu.Lock()
	s.session = id
	s.mu.Unlock()
	monitoring.Logf("[trace] session %s started", id)
	return id, nil
}

// EndSession flushes and closes the current session, if any.
func (s *Store) EndSession(now time.Time) error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.mu.Lock()
	id := s.session
	s.session = ""
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	if _, err := s.db.Exec(`UPDATE trace_sessions SET ended_unix_nanos = ? WHERE session_id = ?`, now.UnixNano(), id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// Session returns the current session id, or "".
func (s *Store) Session() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// RecordBatch buffers a received batch.
func (s *Store) RecordBatch(batch uint64, samples []spatial.RawSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == "" {
		return
	}
	for _, smp := range samples {
		if s.pendingLocked() >= s.maxPending {
			s.dropped++
			continue
		}
		s.samples = append(s.samples, sampleRow{batch: batch, s: smp})
	}
}

// RecordDelivered buffers delivered events.
func (s *Store) RecordDelivered(events []spatial.CanonicalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == "" {
		return
	}
	for _, e := range events {
		if s.pendingLocked() >= s.maxPending {
			s.dropped++
			continue
		}
		s.events = append(s.events, e)
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (s *Store) pendingLocked() int { return len(s.samples) + len(s.events) }

// Pending returns the number of rows buffered for the next flush.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// Flush writes buffered rows in a single transaction. On failure the rows
// go back into the buffer for the next flush.
func (s *Store) Flush() error {
	s.mu.Lock()
	session := s.session
	samples, events := s.samples, s.events
	s.samples, s.events = nil, nil
	s.mu.Unlock()

	if session == "" || len(samples)+len(events) == 0 {
		return nil
	}

	if err := s.write(session, samples, events); err != nil {
		s.requeue(session, samples, events)
		return err
	}

	s.mu.Lock()
	s.written += uint64(len(samples) + len(events))
	s.mu.Unlock()
	return nil
}

// requeue puts rows from a failed flush back ahead of anything buffered
// since. Rows past maxPending, newest first, or for a session that has
// since changed are counted as dropped.
func (s *Store) requeue(session string, samples []sampleRow, events []spatial.CanonicalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != session {
		s.dropped += uint64(len(samples) + len(events))
		return
	}
	samples = append(samples, s.samples...)
	events = append(events, s.events...)
	if excess := len(samples) + len(events) - s.maxPending; excess > 0 {
		n := min(excess, len(events))
		events = events[:len(events)-n]
		samples = samples[:len(samples)-(excess-n)]
		s.dropped += uint64(excess)
	}
	s.samples, s.events = samples, events
	monitoring.Debugf("[trace] %d samples and %d events kept for the next flush", len(samples), len(events))
}

func (s *Store) write(session string, samples []sampleRow, events []spatial.CanonicalEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sampleStmt, err := tx.Prepare(`INSERT INTO trace_samples (
		session_id, batch, raw_id, raw_phase, kind, modifiers,
		ray_origin_x, ray_origin_y, ray_origin_z, ray_dir_x, ray_dir_y, ray_dir_z,
		device_x, device_y, device_z, ts_unix_nanos
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sampleStmt.Close()
	for _, r := range samples {
		smp := r.s
		if _, err := sampleStmt.Exec(
			session, int64(r.batch), int64(smp.RawID), int64(smp.Phase), int64(smp.Kind), int64(smp.Modifiers),
			smp.RayOrigin.X, smp.RayOrigin.Y, smp.RayOrigin.Z,
			smp.RayDirection.X, smp.RayDirection.Y, smp.RayDirection.Z,
			smp.DevicePosition.X, smp.DevicePosition.Y, smp.DevicePosition.Z,
			smp.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	eventStmt, err := tx.Prepare(`INSERT INTO trace_events (
		session_id, tick, slot, phase, synthesized, raw_id, kind,
		device_x, device_y, device_z,
		interaction_w, interaction_x, interaction_y, interaction_z, ts_unix_nanos
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer eventStmt.Close()
	for _, e := range events {
		q := e.InteractionRayRotation
		if _, err := eventStmt.Exec(
			session, int64(e.Tick), int64(e.Slot), int64(e.Phase), boolInt(e.Synthesized), int64(e.RawID), int64(e.Kind),
			e.DevicePosition.X, e.DevicePosition.Y, e.DevicePosition.Z,
			q.Real, q.Imag, q.Jmag, q.Kmag,
			e.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

// Run flushes every interval until ctx is done, then flushes once more.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.Flush()
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				monitoring.Logf("[trace] flush failed: %v", err)
			}
		}
	}
}

// Counters returns rows written and rows dropped for a full buffer.
func (s *Store) Counters() (written, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.dropped
}

// Close ends the session and closes the database.
func (s *Store) Close() error {
	err := s.EndSession(time.Now())
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
