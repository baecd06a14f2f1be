package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"callbridge/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// NOTE: expects the call_sessions table from internal/db/migrations with
// UNIQUE (call_id). conversation_log is a jsonb array of LogEntry.

const pgUniqueViolation = "23505"

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, s CallSession) error {
	const q = `
INSERT INTO call_sessions (
  id, call_id, phone_number, status, start_time, end_time, duration_seconds, conversation_log, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	logJSON, err := json.Marshal(s.ConversationLog)
	if err != nil {
		return fmt.Errorf("encode conversation log: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q,
		s.ID,
		s.CallID,
		s.PhoneNumber,
		s.Status,
		s.StartTime,
		s.EndTime,
		s.DurationSeconds,
		logJSON,
		s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCallID
	}
	return err
}

func (r *PostgresRepo) FindByCallID(ctx context.Context, callID string) (CallSession, error) {
	const q = `
SELECT id, call_id, phone_number, status, start_time, end_time, duration_seconds, conversation_log, updated_at
FROM call_sessions
WHERE call_id = $1
`
	return scanSession(r.db.QueryRowContext(ctx, q, callID))
}

// Complete locks the row so concurrent completions serialize; the second one
// sees the completed status and returns without writing.
func (r *PostgresRepo) Complete(ctx context.Context, callID string, endedAt time.Time) (CallSession, error) {
	var out CallSession
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		s, err := lockSession(ctx, tx, callID)
		if err != nil {
			return err
		}
		if s.Status == CallStatusCompleted {
			out = s
			return nil
		}
		s.complete(endedAt)
		if err := updateCompleted(ctx, tx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return CallSession{}, err
	}
	return out, nil
}

func lockSession(ctx context.Context, tx *sql.Tx, callID string) (CallSession, error) {
	const q = `
SELECT id, call_id, phone_number, status, start_time, end_time, duration_seconds, conversation_log, updated_at
FROM call_sessions
WHERE call_id = $1
FOR UPDATE
`
	return scanSession(tx.QueryRowContext(ctx, q, callID))
}

func updateCompleted(ctx context.Context, tx *sql.Tx, s CallSession) error {
	const q = `
UPDATE call_sessions
SET status = $2, end_time = $3, duration_seconds = $4, conversation_log = $5, updated_at = $6
WHERE call_id = $1
`
	logJSON, err := json.Marshal(s.ConversationLog)
	if err != nil {
		return fmt.Errorf("encode conversation log: %w", err)
	}
	_, err = tx.ExecContext(ctx, q, s.CallID, s.Status, s.EndTime, s.DurationSeconds, logJSON, s.UpdatedAt)
	return err
}

func scanSession(row *sql.Row) (CallSession, error) {
	var (
		s        CallSession
		endTime  sql.NullTime
		duration sql.NullInt64
		logJSON  []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.CallID,
		&s.PhoneNumber,
		&s.Status,
		&s.StartTime,
		&endTime,
		&duration,
		&logJSON,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, err
	}
	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationSeconds = &d
	}
	if err := decodeLog(logJSON, &s.ConversationLog); err != nil {
		return CallSession{}, err
	}
	return s, nil
}

func decodeLog(raw []byte, out *[]LogEntry) error {
	if len(raw) == 0 {
		*out = []LogEntry{}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode conversation log: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
