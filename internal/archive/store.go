// Package archive provides SQLite-based persistence for completed
// trace sessions. The bench itself is never persisted; only results.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/lensworks/raybench/internal/state"
)

// ErrSessionNotFound indicates a requested session is not archived.
var ErrSessionNotFound = errors.New("archive: session not found")

// Store wraps a SQLite connection holding archived trace sessions.
// It implements state.TraceArchiver.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the archive database at the given path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		system_label TEXT NOT NULL,
		mode TEXT NOT NULL,
		workers INTEGER NOT NULL,
		operator_count INTEGER NOT NULL,
		ray_count INTEGER NOT NULL,
		duration_us INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trace_points (
		session_id TEXT NOT NULL,
		trace_idx INTEGER NOT NULL,
		trace_label TEXT NOT NULL,
		step_idx INTEGER NOT NULL,
		x REAL NOT NULL,
		angle REAL NOT NULL,
		z REAL NOT NULL,
		ray_label TEXT NOT NULL,
		PRIMARY KEY (session_id, trace_idx, step_idx)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SessionSummary describes one archived trace session.
type SessionSummary struct {
	ID          string
	CreatedAt   time.Time
	SystemLabel string
	Mode        string
	Workers     int
	Operators   int
	Rays        int
	Duration    time.Duration
}

// Session is a fully loaded archived trace session.
type Session struct {
	SessionSummary
	Traces []state.TraceSnapshot
}

type sessionRow struct {
	ID            string `db:"id"`
	CreatedAt     int64  `db:"created_at"`
	SystemLabel   string `db:"system_label"`
	Mode          string `db:"mode"`
	Workers       int    `db:"workers"`
	OperatorCount int    `db:"operator_count"`
	RayCount      int    `db:"ray_count"`
	DurationUS    int64  `db:"duration_us"`
}

func (r sessionRow) summary() SessionSummary {
	return SessionSummary{
		ID:          r.ID,
		CreatedAt:   time.UnixMicro(r.CreatedAt),
		SystemLabel: r.SystemLabel,
		Mode:        r.Mode,
		Workers:     r.Workers,
		Operators:   r.OperatorCount,
		Rays:        r.RayCount,
		Duration:    time.Duration(r.DurationUS) * time.Microsecond,
	}
}

type pointRow struct {
	TraceIndex int     `db:"trace_idx"`
	TraceLabel string  `db:"trace_label"`
	StepIndex  int     `db:"step_idx"`
	X          float64 `db:"x"`
	Angle      float64 `db:"angle"`
	Z          float64 `db:"z"`
	RayLabel   string  `db:"ray_label"`
}

// SaveSession writes one trace result and all its ray paths.
func (s *Store) SaveSession(ctx context.Context, res *state.TraceResult) error {
	if res == nil || res.SessionID == "" {
		return errors.New("archive: session without ID")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions
		(id, created_at, system_label, mode, workers, operator_count, ray_count, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, res.StartedAt.UnixMicro(), res.SystemLabel, res.Mode,
		res.Workers, res.Operators, len(res.Traces), res.Duration.Microseconds(),
	); err != nil {
		return fmt.Errorf("insert session %s: %w", res.SessionID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO trace_points
		(session_id, trace_idx, trace_label, step_idx, x, angle, z, ray_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, tr := range res.Traces {
		for j, p := range tr.Points {
			if _, err := stmt.ExecContext(ctx,
				res.SessionID, i, tr.Label, j, p.X, p.Angle, p.Z, p.Label,
			); err != nil {
				return fmt.Errorf("insert point %d/%d of session %s: %w", i, j, res.SessionID, err)
			}
		}
	}

	return tx.Commit()
}

// ListSessions returns all archived sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT
		id, created_at, system_label, mode, workers, operator_count, ray_count, duration_us
		FROM sessions ORDER BY created_at DESC, id`); err != nil {
		return nil, err
	}

	out := make([]SessionSummary, len(rows))
	for i, r := range rows {
		out[i] = r.summary()
	}
	return out, nil
}

// Session loads one archived session with its full ray paths.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT
		id, created_at, system_label, mode, workers, operator_count, ray_count, duration_us
		FROM sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var points []pointRow
	if err := s.db.SelectContext(ctx, &points, `SELECT
		trace_idx, trace_label, step_idx, x, angle, z, ray_label
		FROM trace_points WHERE session_id = ?
		ORDER BY trace_idx, step_idx`, id); err != nil {
		return nil, err
	}

	session := &Session{SessionSummary: row.summary()}
	for _, p := range points {
		// Rows arrive ordered by trace, so a new index starts a new path.
		if len(session.Traces) == p.TraceIndex {
			session.Traces = append(session.Traces, state.TraceSnapshot{Label: p.TraceLabel})
		}
		tr := &session.Traces[len(session.Traces)-1]
		tr.Points = append(tr.Points, state.RayPoint{X: p.X, Angle: p.Angle, Z: p.Z, Label: p.RayLabel})
	}
	return session, nil
}
