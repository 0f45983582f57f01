// Package ledger implements the durable idempotency ledger that guards the
// meal pipeline against duplicate processing of one request key.
//
// The write path is a conditional insert: first sight of a key creates a
// PROCESSING record with an expiry, and the loser of a concurrent insert race
// is told to abstain instead of erroring. Records expire after the retention
// window regardless of status, so a crashed run can never block a key forever.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/nutrilog/nutrilog/constants"
)

// BeginOutcome is the result of inspecting the ledger for a key.
type BeginOutcome int

const (
	// Proceed: first sight, a PROCESSING record was created.
	Proceed BeginOutcome = iota
	// AlreadyCompleted: the key finished a prior run (or this caller lost a
	// concurrent insert race). The caller must skip all side effects.
	AlreadyCompleted
	// AlreadyInProgress: a live PROCESSING record exists. The default policy
	// treats it as a crashed prior attempt and proceeds anyway, accepting an
	// at-least-once window.
	AlreadyInProgress
)

func (o BeginOutcome) String() string {
	switch o {
	case Proceed:
		return "PROCEED"
	case AlreadyCompleted:
		return "ALREADY_COMPLETED"
	case AlreadyInProgress:
		return "ALREADY_IN_PROGRESS"
	}
	return "UNKNOWN"
}

// ErrClosed indicates the ledger store has been closed.
var ErrClosed = errors.New("ledger store is closed")

// Record is one idempotency ledger row.
type Record struct {
	Key       string
	Status    constants.LedgerStatus
	ExpiresAt time.Time
}

// Ledger is the only mutable shared state in the system. Implementations must
// make Begin's insert-if-absent atomic across independent, non-communicating
// process instances (for the postgres backend) or across goroutines (memory,
// sqlite).
type Ledger interface {
	// Begin atomically records first sight of key with status PROCESSING and
	// an expiry of now+retention, returning Proceed. An unexpired record maps
	// to AlreadyCompleted or AlreadyInProgress by status; an expired record is
	// taken over as if absent. Any unexpected storage error propagates.
	Begin(ctx context.Context, key string) (BeginOutcome, error)

	// Complete marks key COMPLETED. Idempotent; completing twice, or
	// completing a key whose record already expired, is harmless.
	Complete(ctx context.Context, key string) error

	// CleanupExpired removes records past their expiry, returning the number
	// removed. Backends may also expire lazily during Begin.
	CleanupExpired(ctx context.Context) (int, error)

	Close() error
}

// StartCleanupRoutine purges expired records on a fixed interval until the
// returned channel is closed.
func StartCleanupRoutine(l Ledger, interval time.Duration, logf func(count int, err error)) chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				count, err := l.CleanupExpired(ctx)
				cancel()
				if logf != nil {
					logf(count, err)
				}
			case <-done:
				return
			}
		}
	}()
	return done
}
