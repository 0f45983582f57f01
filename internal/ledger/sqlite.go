package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nutrilog/nutrilog/constants"
)

// SQLiteLedger is an embedded ledger for single-node deployments. Expiry is
// stored as epoch seconds; expired rows are taken over in place by Begin and
// purged by CleanupExpired.
type SQLiteLedger struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewSQLiteLedger(path string, retention time.Duration, logger *slog.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// sqlite allows one writer at a time; concurrent connections surface as
	// SQLITE_BUSY instead of queueing. Serialize on a single connection so
	// racing Begin calls resolve through the conditional insert.
	db.SetMaxOpenConns(1)

	schema := `
    CREATE TABLE IF NOT EXISTS idempotency_records (
        key        TEXT PRIMARY KEY,
        status     TEXT NOT NULL,
        expires_at INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_idempotency_expires_at ON idempotency_records(expires_at);
    `
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}

	return &SQLiteLedger{db: db, retention: retention, logger: logger, now: time.Now}, nil
}

func (l *SQLiteLedger) Begin(ctx context.Context, key string) (BeginOutcome, error) {
	now := l.now().Unix()

	var status string
	var expiresAt int64
	err := l.db.QueryRowContext(ctx,
		`SELECT status, expires_at FROM idempotency_records WHERE key = ?`, key,
	).Scan(&status, &expiresAt)
	switch {
	case err == nil && expiresAt > now:
		if status == string(constants.LedgerStatusCompleted) {
			return AlreadyCompleted, nil
		}
		return AlreadyInProgress, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return AlreadyCompleted, fmt.Errorf("ledger read: %w", err)
	}

	// Absent or expired. The conditional upsert only fires when the existing
	// row (if any) is past its expiry, so a concurrent consumer that inserted
	// between our read and here wins and we affect zero rows.
	res, err := l.db.ExecContext(ctx, `
        INSERT INTO idempotency_records (key, status, expires_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET status = excluded.status, expires_at = excluded.expires_at
        WHERE idempotency_records.expires_at <= ?`,
		key, string(constants.LedgerStatusProcessing), l.now().Add(l.retention).Unix(), now)
	if err != nil {
		return AlreadyCompleted, fmt.Errorf("ledger insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AlreadyCompleted, fmt.Errorf("ledger insert result: %w", err)
	}
	if n == 0 {
		l.logger.Warn("ledger.begin.lost_insert_race", "key", key)
		return AlreadyCompleted, nil
	}
	return Proceed, nil
}

func (l *SQLiteLedger) Complete(ctx context.Context, key string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE idempotency_records SET status = ? WHERE key = ?`,
		string(constants.LedgerStatusCompleted), key)
	if err != nil {
		return fmt.Errorf("ledger complete: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) CleanupExpired(ctx context.Context) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at <= ?`, l.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup result: %w", err)
	}
	return int(n), nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
