package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nutrilog/nutrilog/constants"
)

// PostgresLedger backs the ledger with a shared Postgres table, the right
// choice when several consumer instances process the same queue. The
// conditional insert relies on the primary key plus ON CONFLICT, so it is
// atomic across non-communicating processes.
type PostgresLedger struct {
	pool      *pgxpool.Pool
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewPostgresLedger(ctx context.Context, dsn string, retention time.Duration, logger *slog.Logger) (*PostgresLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "nutrilog"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}

	schema := `
    CREATE TABLE IF NOT EXISTS idempotency_records (
        key        TEXT PRIMARY KEY,
        status     TEXT NOT NULL,
        expires_at BIGINT NOT NULL
    )`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}

	logger.Info("ledger.postgres.connected")
	return &PostgresLedger{pool: pool, retention: retention, logger: logger, now: time.Now}, nil
}

func (l *PostgresLedger) Begin(ctx context.Context, key string) (BeginOutcome, error) {
	now := l.now().Unix()

	var status string
	var expiresAt int64
	err := l.pool.QueryRow(ctx,
		`SELECT status, expires_at FROM idempotency_records WHERE key = $1`, key,
	).Scan(&status, &expiresAt)
	switch {
	case err == nil && expiresAt > now:
		if status == string(constants.LedgerStatusCompleted) {
			return AlreadyCompleted, nil
		}
		return AlreadyInProgress, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return AlreadyCompleted, fmt.Errorf("ledger read: %w", err)
	}

	// Absent or expired. The upsert's WHERE clause keeps a live row intact,
	// so the loser of a concurrent insert race affects zero rows and abstains.
	tag, err := l.pool.Exec(ctx, `
        INSERT INTO idempotency_records (key, status, expires_at) VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET status = EXCLUDED.status, expires_at = EXCLUDED.expires_at
        WHERE idempotency_records.expires_at <= $4`,
		key, string(constants.LedgerStatusProcessing), l.now().Add(l.retention).Unix(), now)
	if err != nil {
		return AlreadyCompleted, fmt.Errorf("ledger insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.logger.Warn("ledger.begin.lost_insert_race", "key", key)
		return AlreadyCompleted, nil
	}
	return Proceed, nil
}

func (l *PostgresLedger) Complete(ctx context.Context, key string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE idempotency_records SET status = $1 WHERE key = $2`,
		string(constants.LedgerStatusCompleted), key)
	if err != nil {
		return fmt.Errorf("ledger complete: %w", err)
	}
	return nil
}

func (l *PostgresLedger) CleanupExpired(ctx context.Context) (int, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM idempotency_records WHERE expires_at <= $1`, l.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}
