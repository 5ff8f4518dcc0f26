package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/contactscan/internal/governor"
)

// SessionQuota is the daily lookup counter of one CLI session, stored in
// the sessions table so it survives between runs.
type SessionQuota struct {
	cdb *ContactDB
	id  string
}

// SessionQuota returns the quota of session id.
func (cdb *ContactDB) SessionQuota(id string) *SessionQuota {
	return &SessionQuota{cdb: cdb, id: id}
}

// Count implements governor.DailyQuota.
func (q *SessionQuota) Count(ctx context.Context) (int, error) {
	query := `SELECT daily_count FROM sessions WHERE id = ? AND expires_at >= ?`

	var n int
	err := q.cdb.db.QueryRowContext(ctx, query, q.id, q.cdb.now().Unix()).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session quota: %w", err)
	}
	return n, nil
}

// Reserve implements governor.DailyQuota. An expired counter restarts at
// one. The conditional upsert leaves a full counter untouched, which makes
// the check and the increment a single statement.
func (q *SessionQuota) Reserve(ctx context.Context, limit int) (bool, error) {
	now := q.cdb.now()

	query := `
	INSERT INTO sessions (id, daily_count, expires_at)
	VALUES (?, 1, ?)
	ON CONFLICT(id) DO UPDATE SET
		daily_count = CASE WHEN sessions.expires_at < ? THEN 1 ELSE sessions.daily_count + 1 END,
		expires_at = excluded.expires_at
	WHERE sessions.expires_at < ? OR sessions.daily_count < ?
	`

	res, err := q.cdb.db.ExecContext(ctx, query,
		q.id, now.Add(governor.DailyLifetime).Unix(), now.Unix(), now.Unix(), limit)
	if err != nil {
		return false, fmt.Errorf("failed to update session quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update session quota: %w", err)
	}
	return n > 0, nil
}

// PurgeSessions deletes expired session counters and returns how many
// were removed.
func (cdb *ContactDB) PurgeSessions(ctx context.Context) (int64, error) {
	res, err := cdb.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, cdb.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}
