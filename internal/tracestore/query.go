package tracestore

import (
	"database/sql"
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// Session describes one recorded session.
type Session struct {
	SessionID string     `json:"session_id"`
	Label     string     `json:"label"`
	Started   time.Time  `json:"started"`
	Ended     *time.Time `json:"ended,omitempty"`
	Samples   int        `json:"samples"`
	Events    int        `json:"events"`
}

// Sessions lists sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.label, s.started_unix_nanos, s.ended_unix_nanos,
		       (SELECT COUNT(*) FROM trace_samples WHERE session_id = s.session_id),
		       (SELECT COUNT(*) FROM trace_events WHERE session_id = s.session_id)
		FROM trace_sessions s
		ORDER BY s.started_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&sess.SessionID, &sess.Label, &started, &ended, &sess.Samples, &sess.Events); err != nil {
			return nil, err
		}
		sess.Started = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			sess.Ended = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// LatestSession returns the id of the most recently started session.
func (s *Store) LatestSession() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT session_id FROM trace_sessions ORDER BY started_unix_nanos DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNoSession
	}
	return id, err
}

// Events returns the delivered events of a session in tick then slot
// order. Ray fields other than the device position and interaction
// rotation are not stored.
func (s *Store) Events(sessionID string) ([]spatial.CanonicalEvent, error) {
	rows, err := s.db.Query(`
		SELECT tick, slot, phase, synthesized, raw_id, kind,
		       device_x, device_y, device_z,
		       interaction_w, interaction_x, interaction_y, interaction_z, ts_unix_nanos
		FROM trace_events
		WHERE session_id = ?
		ORDER BY tick, slot, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []spatial.CanonicalEvent
	for rows.Next() {
		var (
			e                  spatial.CanonicalEvent
			tick, ts           int64
			phase, kind, synth int64
			dev                r3.Vec
			q                  quat.Number
		)
		if err := rows.Scan(&tick, &e.Slot, &phase, &synth, &e.RawID, &kind,
			&dev.X, &dev.Y, &dev.Z, &q.Real, &q.Imag, &q.Jmag, &q.Kmag, &ts); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		e.Phase = spatial.Phase(phase)
		e.Kind = spatial.Kind(kind)
		e.Synthesized = synth != 0
		e.DevicePosition = dev
		e.InteractionRayRotation = q
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Samples returns the raw samples of a session in arrival order.
func (s *Store) Samples(sessionID string) ([]spatial.RawSample, error) {
	rows, err := s.db.Query(`
		SELECT batch, raw_id, raw_phase, kind, modifiers,
		       ray_origin_x, ray_origin_y, ray_origin_z, ray_dir_x, ray_dir_y, ray_dir_z,
		       device_x, device_y, device_z, ts_unix_nanos
		FROM trace_samples
		WHERE session_id = ?
		ORDER BY batch, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []spatial.RawSample
	for rows.Next() {
		var (
			smp                          spatial.RawSample
			batch, phase, kind, mods, ts int64
		)
		if err := rows.Scan(&batch, &smp.RawID, &phase, &kind, &mods,
			&smp.RayOrigin.X, &smp.RayOrigin.Y, &smp.RayOrigin.Z,
			&smp.RayDirection.X, &smp.RayDirection.Y, &smp.RayDirection.Z,
			&smp.DevicePosition.X, &smp.DevicePosition.Y, &smp.DevicePosition.Z, &ts); err != nil {
			return nil, err
		}
		smp.Batch = uint64(batch)
		smp.Phase = spatial.RawPhase(phase)
		smp.Kind = spatial.Kind(kind)
		smp.Modifiers = spatial.ModifierKeys(mods)
		smp.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, smp)
	}
	return out, rows.Err()
}
