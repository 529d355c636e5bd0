package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists attendance sessions in Postgres.
//
// Atomicity: every transition takes pg_advisory_xact_lock on a key derived
// from (learner, day) before the check-and-mutate sequence, so concurrent
// scans for the same learner serialize at the database while scans for
// different learners proceed in parallel. The lock is released at
// commit/rollback.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// learnerDayKey hashes (lrn, day) into the advisory lock keyspace.
func learnerDayKey(lrn string, day time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(lrn))
	h.Write([]byte{'|'})
	h.Write([]byte(day.Format("2006-01-02")))
	return int64(h.Sum64())
}

// RecordTimeIn opens a new session unless the learner already has an open
// one today, in which case the existing session number is reported back.
func (s *PostgresStore) RecordTimeIn(ctx context.Context, p TimeInParams, now time.Time) (TimeInResult, error) {
	day := dateOf(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TimeInResult{}, fmt.Errorf("begin time-in tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, learnerDayKey(p.LRN, day)); err != nil {
		return TimeInResult{}, fmt.Errorf("lock learner day: %w", err)
	}

	var openNumber int
	err = tx.QueryRowContext(ctx, `
		SELECT session_number FROM attendance_sessions
		WHERE learner_reference_number = $1 AND session_date = $2 AND time_out IS NULL
		ORDER BY session_number DESC
		LIMIT 1
	`, p.LRN, day).Scan(&openNumber)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return TimeInResult{}, fmt.Errorf("commit time-in tx: %w", err)
		}
		return TimeInResult{
			SessionNumber: openNumber,
			Duplicate:     true,
			Message:       "Time in already recorded. The student can now time out.",
		}, nil
	case errors.Is(err, sql.ErrNoRows):
		// no open session, fall through to insert
	default:
		return TimeInResult{}, fmt.Errorf("check open session: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(session_number), 0) + 1 FROM attendance_sessions
		WHERE learner_reference_number = $1 AND session_date = $2
	`, p.LRN, day).Scan(&next); err != nil {
		return TimeInResult{}, fmt.Errorf("next session number: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_sessions
			(id, learner_reference_number, session_date, session_number, time_in, rfid_tag, grade_level, school_year)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, uuid.NewString(), p.LRN, day, next, now, p.RFIDTag, p.GradeLevel, p.SchoolYear); err != nil {
		return TimeInResult{}, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return TimeInResult{}, fmt.Errorf("commit time-in tx: %w", err)
	}
	return TimeInResult{
		SessionNumber: next,
		TimeIn:        now,
		Message:       fmt.Sprintf("Time in recorded (session %d).", next),
	}, nil
}

// RecordTimeOut closes the learner's open session for today, if any.
func (s *PostgresStore) RecordTimeOut(ctx context.Context, lrn string, now time.Time) (TimeOutResult, error) {
	day := dateOf(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TimeOutResult{}, fmt.Errorf("begin time-out tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, learnerDayKey(lrn, day)); err != nil {
		return TimeOutResult{}, fmt.Errorf("lock learner day: %w", err)
	}

	var (
		id            string
		sessionNumber int
		timeIn        time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, session_number, time_in FROM attendance_sessions
		WHERE learner_reference_number = $1 AND session_date = $2 AND time_out IS NULL
		ORDER BY session_number DESC
		LIMIT 1
	`, lrn, day).Scan(&id, &sessionNumber, &timeIn)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return TimeOutResult{}, fmt.Errorf("commit time-out tx: %w", err)
		}
		return TimeOutResult{
			NoActiveSession: true,
			Message:         "No active time-in found. The student may have already timed out.",
		}, nil
	}
	if err != nil {
		return TimeOutResult{}, fmt.Errorf("find open session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions SET time_out = $2 WHERE id = $1
	`, id, now); err != nil {
		return TimeOutResult{}, fmt.Errorf("close session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return TimeOutResult{}, fmt.Errorf("commit time-out tx: %w", err)
	}

	hours := roundHours(now.Sub(timeIn))
	return TimeOutResult{
		SessionNumber: sessionNumber,
		TimeOut:       now,
		DurationHours: hours,
		Message:       fmt.Sprintf("Time out recorded (session %d, %.2f hours).", sessionNumber, hours),
	}, nil
}

// roundHours converts a duration to hours rounded to 2 decimal places.
func roundHours(d time.Duration) float64 {
	return math.Round(d.Seconds()/3600*100) / 100
}

const sessionColumns = `id, learner_reference_number, session_date, session_number, time_in, time_out, rfid_tag, grade_level, school_year, COALESCE(notes, ''), created_at`

// ListDay returns a learner's sessions for one day, ordered by session number.
func (s *PostgresStore) ListDay(ctx context.Context, lrn string, day time.Time) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE learner_reference_number = $1 AND session_date = $2
		ORDER BY session_number
	`, lrn, dateOf(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// RecentSessions returns the latest sessions for a day across all learners.
func (s *PostgresStore) RecentSessions(ctx context.Context, day time.Time, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE session_date = $1
		ORDER BY time_in DESC
		LIMIT $2
	`, dateOf(day), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	var res []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.LRN, &sess.Date, &sess.SessionNumber, &sess.TimeIn, &sess.TimeOut, &sess.RFIDTag, &sess.GradeLevel, &sess.SchoolYear, &sess.Notes, &sess.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}

// RegisterStation ensures a scan station record exists.
func (s *PostgresStore) RegisterStation(ctx context.Context, stationID string) error {
	if stationID == "" {
		return errors.New("station id required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_stations (station_id)
		VALUES ($1)
		ON CONFLICT (station_id) DO NOTHING
	`, stationID)
	return err
}

// SaveRefreshToken stores a station refresh token for rotation checks.
func (s *PostgresStore) SaveRefreshToken(ctx context.Context, stationID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (station_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, stationID, token, expiresAt)
	return err
}
