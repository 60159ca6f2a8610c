package round

import "fmt"

// DebitTxnID is the idempotency key for a bet's ledger debit: it must be
// assigned by the Bet Book's sequence counter before the debit happens, per
// the sequence-before-debit ordering the scheduler relies on.
func DebitTxnID(roundID int64, player string, sequence int64) string {
	return fmt.Sprintf("%d:%s:%d", roundID, player, sequence)
}

// CreditTxnID is the idempotency key for a bet's settlement credit. It is a
// pure function of (roundID, betID) so re-submitting the same settlement
// batch after a partial failure is safe.
func CreditTxnID(roundID int64, betID string) string {
	return fmt.Sprintf("%d:%s:credit", roundID, betID)
}

// RefundTxnID is the idempotency key used to reverse a bet's debit when a
// round aborts before an outcome can be drawn.
func RefundTxnID(roundID int64, betID string) string {
	return fmt.Sprintf("%d:%s:refund", roundID, betID)
}
