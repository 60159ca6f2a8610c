package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rouletteengine/core/internal/round"
)

// AuditStore persists round.AuditRecord rows to Postgres, implementing
// round.AuditRecorder so the scheduler never imports a storage driver
// directly.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore wraps a pool for round-audit persistence.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (a *AuditStore) Record(ctx context.Context, rec round.AuditRecord) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO round_audit (
			round_number, commitment, server_seed_revealed, client_seed, nonce,
			outcome_index, outcome_color, total_staked, total_paid_out,
			house_take_ratio, bet_count, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (round_number) DO NOTHING`,
		rec.RoundNumber, rec.Commitment, rec.ServerSeedRevealed, rec.ClientSeed, rec.Nonce,
		rec.OutcomeIndex, rec.OutcomeColor, rec.TotalStaked, rec.TotalPaidOut,
		rec.HouseTakeRatio, rec.BetCount, rec.StartedAt, rec.EndedAt,
	)
	return err
}

// Get reads a terminated round's audit trail, implementing
// server.RoundResultsReader for the get_round_results operation.
func (a *AuditStore) Get(ctx context.Context, roundNumber int64) (round.AuditRecord, bool, error) {
	var rec round.AuditRecord
	row := a.pool.QueryRow(ctx, `
		SELECT round_number, commitment, server_seed_revealed, client_seed, nonce,
		       outcome_index, outcome_color, total_staked, total_paid_out,
		       house_take_ratio, bet_count, started_at, ended_at
		FROM round_audit WHERE round_number = $1`, roundNumber)

	err := row.Scan(&rec.RoundNumber, &rec.Commitment, &rec.ServerSeedRevealed, &rec.ClientSeed, &rec.Nonce,
		&rec.OutcomeIndex, &rec.OutcomeColor, &rec.TotalStaked, &rec.TotalPaidOut,
		&rec.HouseTakeRatio, &rec.BetCount, &rec.StartedAt, &rec.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return round.AuditRecord{}, false, nil
	}
	if err != nil {
		return round.AuditRecord{}, false, err
	}
	return rec, true, nil
}

var _ round.AuditRecorder = (*AuditStore)(nil)
