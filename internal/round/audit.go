package round

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// AuditRecord is the durable, one-row-per-round audit trail persisted once a
// round reaches RESULTS. HouseTakeRatio is the only field in this package
// carried as decimal.Decimal rather than int64: it is a derived ratio
// ((staked - paid out) / staked), not a GEM amount, so fixed-point balance arithmetic
// doesn't apply and a decimal avoids float drift in the stored value.
type AuditRecord struct {
	RoundNumber        int64
	Commitment         string
	ServerSeedRevealed string
	ClientSeed         string
	Nonce              int64
	OutcomeIndex       int
	OutcomeColor       string
	TotalStaked        int64
	TotalPaidOut       int64
	HouseTakeRatio     decimal.Decimal
	BetCount           int
	StartedAt          time.Time
	EndedAt            time.Time
}

// AuditRecorder persists a round's audit trail. The scheduler depends only on
// this interface so component C4 never imports a storage driver directly.
type AuditRecorder interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// houseTakeRatio computes (staked-paidOut)/staked, clamped to zero when
// nothing was staked so an empty round never divides by zero.
func houseTakeRatio(staked, paidOut int64) decimal.Decimal {
	if staked == 0 {
		return decimal.Zero
	}
	s := decimal.NewFromInt(staked)
	p := decimal.NewFromInt(paidOut)
	return s.Sub(p).DivRound(s, 6)
}

// Alerter is notified when a round cannot advance on its own, e.g. the
// ledger batch settling it keeps failing. The scheduler never blocks on
// Alert; implementations must return quickly.
type Alerter interface {
	Alert(ctx context.Context, roundNumber int64, reason string)
}

// LogAlerter is the default Alerter: it writes a line to the standard
// logger. Production deployments needing paging would implement Alerter
// against their own on-call tooling; nothing in this package forces that
// choice.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, roundNumber int64, reason string) {
	log.Printf("[ALERT] round %d stalled: %s", roundNumber, reason)
}

// NoopAuditRecorder discards audit records. Useful for tests and for running
// the scheduler without a database configured.
type NoopAuditRecorder struct{}

func (NoopAuditRecorder) Record(ctx context.Context, rec AuditRecord) error { return nil }
