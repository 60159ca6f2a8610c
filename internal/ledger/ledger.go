// Package ledger implements the append-only, idempotent virtual-currency
// balance store (component C1). Every balance mutation is a Postgres
// transaction keyed by a caller-supplied idempotency key; Redis mirrors the
// latest balance for cheap reads but is never the source of truth.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rouletteengine/core/internal/cache"
)

var (
	// ErrInsufficientFunds is returned when a debit would leave a balance
	// negative. No mutation occurs.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrConflict is returned when a txn id is resubmitted with different
	// parameters than its original application.
	ErrConflict = errors.New("ledger: transaction id conflict")
	// ErrUnavailable wraps a storage-layer failure surfaced after bounded
	// retries are exhausted.
	ErrUnavailable = errors.New("ledger: unavailable")
)

// Entry is a single request to mutate one player's balance, used by
// BatchApply to post several debits/credits as one atomic unit.
type Entry struct {
	TxnID  string
	Player string
	Delta  int64
	Reason string
	RoundID *int64
}

// Result is what a successful (or idempotently replayed) Apply returns.
type Result struct {
	Accepted bool
	Balance  int64
}

const (
	maxRetries     = 3
	retryBaseDelay = 20 * time.Millisecond
)

// Ledger is the process-wide singleton balance store.
type Ledger struct {
	pool           *pgxpool.Pool
	redis          *redis.Client
	initialBalance int64
}

// New constructs a Ledger backed by the given Postgres pool and Redis
// balance mirror.
func New(pool *pgxpool.Pool, redisClient *redis.Client, initialBalance int64) *Ledger {
	return &Ledger{pool: pool, redis: redisClient, initialBalance: initialBalance}
}

// GetBalance never fails for known or unknown players: an unknown player
// reads as the configured initial balance on first touch.
func (l *Ledger) GetBalance(ctx context.Context, player string) (int64, error) {
	if cached, ok := cache.CachedBalance(ctx, l.redis, player); ok {
		return cached, nil
	}

	var balance int64
	err := l.withRetry(func() error {
		row := l.pool.QueryRow(ctx,
			`SELECT balance FROM ledger_balances WHERE player = $1`, player)
		scanErr := row.Scan(&balance)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			balance = l.initialBalance
			return nil
		}
		return scanErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return balance, nil
}

// Apply atomically debits or credits one player's balance. It is idempotent
// on txnID: resubmission with identical (player, delta, reason, roundID)
// returns the original outcome without side effect; resubmission with
// different parameters returns ErrConflict.
func (l *Ledger) Apply(ctx context.Context, txnID, player string, delta int64, reason string, roundID *int64) (Result, error) {
	var result Result
	err := l.withRetry(func() error {
		tx, err := l.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		res, applyErr := applyWithinTx(ctx, tx, l.initialBalance, txnID, player, delta, reason, roundID)
		if applyErr != nil {
			return applyErr
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrConflict) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cache.MirrorBalance(ctx, l.redis, player, result.Balance)
	return result, nil
}

// BatchApply applies a vector of debits/credits as a single atomic unit. If
// any entry would violate the non-negative invariant, none are applied.
// Entries are locked and applied in a stable order (sorted by player, then
// txn id) to avoid lock-ordering deadlocks across concurrent batches.
func (l *Ledger) BatchApply(ctx context.Context, entries []Entry) ([]Result, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sortEntries(ordered)

	results := make([]Result, len(ordered))
	err := l.withRetry(func() error {
		tx, err := l.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for i, e := range ordered {
			res, applyErr := applyWithinTx(ctx, tx, l.initialBalance, e.TxnID, e.Player, e.Delta, e.Reason, e.RoundID)
			if applyErr != nil {
				return applyErr
			}
			results[i] = res
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for i, e := range ordered {
		cache.MirrorBalance(ctx, l.redis, e.Player, results[i].Balance)
	}
	return results, nil
}

func sortEntries(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && lessEntry(entries[j], entries[j-1]) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

func lessEntry(a, b Entry) bool {
	if a.Player != b.Player {
		return a.Player < b.Player
	}
	return a.TxnID < b.TxnID
}

// applyWithinTx performs the lock-check-insert-update dance for one entry
// inside an already-open transaction.
func applyWithinTx(ctx context.Context, tx pgx.Tx, initialBalance int64, txnID, player string, delta int64, reason string, roundID *int64) (Result, error) {
	var existingPlayer string
	var existingDelta int64
	var existingReason string
	var existingRoundID *int64
	var existingBalance int64
	err := tx.QueryRow(ctx,
		`SELECT player, delta, reason, round_id, resulting_balance FROM ledger_transactions WHERE id = $1`, txnID,
	).Scan(&existingPlayer, &existingDelta, &existingReason, &existingRoundID, &existingBalance)
	if err == nil {
		sameRound := (existingRoundID == nil) == (roundID == nil) &&
			(roundID == nil || *existingRoundID == *roundID)
		if existingPlayer != player || existingDelta != delta || existingReason != reason || !sameRound {
			return Result{}, ErrConflict
		}
		return Result{Accepted: true, Balance: existingBalance}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Result{}, err
	}

	var currentBalance int64
	row := tx.QueryRow(ctx,
		`SELECT balance FROM ledger_balances WHERE player = $1 FOR UPDATE`, player)
	scanErr := row.Scan(&currentBalance)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		currentBalance = initialBalance
		if _, insertErr := tx.Exec(ctx,
			`INSERT INTO ledger_balances (player, balance) VALUES ($1, $2)`, player, currentBalance); insertErr != nil {
			return Result{}, insertErr
		}
	} else if scanErr != nil {
		return Result{}, scanErr
	}

	newBalance := currentBalance + delta
	if newBalance < 0 {
		return Result{}, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE ledger_balances SET balance = $1 WHERE player = $2`, newBalance, player); err != nil {
		return Result{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_transactions (id, player, delta, reason, round_id, resulting_balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		txnID, player, delta, reason, roundID, newBalance); err != nil {
		return Result{}, err
	}

	return Result{Accepted: true, Balance: newBalance}, nil
}

// withRetry retries a storage operation with bounded exponential backoff,
// matching the unavailable-after-bounded-retries contract callers expect.
func (l *Ledger) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = op()
		if err == nil || errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrConflict) {
			return err
		}
		time.Sleep(retryBaseDelay * time.Duration(1<<attempt))
	}
	return err
}
