package round

import (
	"errors"
	"sync"
	"time"
)

// BetKind is a closed enumeration of the wager types this engine accepts.
type BetKind string

const (
	BetSingleNumber BetKind = "SINGLE_NUMBER"
	BetColor        BetKind = "COLOR"
	BetParity       BetKind = "PARITY"
	BetRange        BetKind = "RANGE"
)

// Settlement is the terminal state of a bet once a round resolves.
type Settlement string

const (
	SettlementPending Settlement = "pending"
	SettlementWon      Settlement = "won"
	SettlementLost     Settlement = "lost"
)

var (
	ErrBettingClosed = errors.New("round: betting closed")
	ErrBadSelection  = errors.New("round: bad selection")
	ErrOutOfRange    = errors.New("round: stake out of range")
)

// Bet is a single accepted wager. Selection is kept as a string because the
// valid alphabet depends on Kind (see multiplierFor). Neither field is closed
// at the type level: a pair such as SINGLE_NUMBER/red can be constructed, and
// it is rejected at runtime when multiplierFor reports it invalid.
type Bet struct {
	ID          string
	RoundNumber int64
	Player      string
	Kind        BetKind
	Selection   string
	Stake       int64
	AcceptedAt  time.Time
	Settlement  Settlement
	Payout      int64
	LedgerTxnID string
	CreditTxnID string
	Balance     int64
}

// multiplierFor returns the payout multiplier for a kind/selection pair, and
// whether the pair is valid at all.
func multiplierFor(kind BetKind, selection string) (int64, bool) {
	switch kind {
	case BetSingleNumber:
		n, ok := parseWheelIndex(selection)
		if !ok {
			return 0, false
		}
		_ = n
		return 35, true
	case BetColor:
		switch selection {
		case "red", "black":
			return 2, true
		case "green":
			return 14, true
		}
		return 0, false
	case BetParity:
		switch selection {
		case "even", "odd":
			return 2, true
		}
		return 0, false
	case BetRange:
		switch selection {
		case "low", "high":
			return 2, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseWheelIndex(selection string) (int, bool) {
	n := 0
	if selection == "" {
		return 0, false
	}
	for _, r := range selection {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n < 0 || n > 36 {
		return 0, false
	}
	return n, true
}

// wins reports whether a bet of the given kind/selection wins against the
// outcome index. zero is neither even/odd nor low/high.
func wins(kind BetKind, selection string, outcomeIndex int) bool {
	switch kind {
	case BetSingleNumber:
		n, _ := parseWheelIndex(selection)
		return n == outcomeIndex
	case BetColor:
		return string(ColorOf(outcomeIndex)) == selection
	case BetParity:
		if outcomeIndex == 0 {
			return false
		}
		if selection == "even" {
			return outcomeIndex%2 == 0
		}
		return outcomeIndex%2 == 1
	case BetRange:
		if outcomeIndex == 0 {
			return false
		}
		if selection == "low" {
			return outcomeIndex >= 1 && outcomeIndex <= 18
		}
		return outcomeIndex >= 19 && outcomeIndex <= 36
	default:
		return false
	}
}

// Settled is the outcome of settling a single bet, returned by Book.Settle.
type Settled struct {
	BetID       string
	Player      string
	Stake       int64
	Settlement  Settlement
	Payout      int64
	CreditTxnID string
}

// Book is the per-round, in-memory collection of accepted bets (component
// C3). A Book is created open, accepts bets until frozen, and settles exactly
// once against a drawn outcome. Settle is a pure function of the frozen bets
// plus the outcome: calling it twice yields bit-identical results.
type Book struct {
	mu       sync.Mutex
	roundID  int64
	minStake int64
	maxStake int64
	frozen   bool
	bets     []Bet
	seq      int64
}

// OpenBook initializes an empty book for a round.
func OpenBook(roundID int64, minStake, maxStake int64) *Book {
	return &Book{
		roundID:  roundID,
		minStake: minStake,
		maxStake: maxStake,
	}
}

// NextSequence hands out the next bet sequence number for this round without
// recording a bet. The client contract layer (C6) must obtain this sequence
// before debiting the ledger, so the ledger transaction id
// (round:player:sequence) can be constructed before the bet-book insert,
// preserving the sequence-before-debit ordering callers rely on.
func (b *Book) NextSequence() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return b.seq
}

// Accept validates and records a bet. It returns ErrBettingClosed if the book
// has been frozen, ErrBadSelection for a malformed kind/selection pair, and
// ErrOutOfRange if the stake falls outside [minStake, maxStake].
func (b *Book) Accept(betID, player string, kind BetKind, selection string, stake int64) (Bet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return Bet{}, ErrBettingClosed
	}
	if _, ok := multiplierFor(kind, selection); !ok {
		return Bet{}, ErrBadSelection
	}
	if stake < b.minStake || stake > b.maxStake {
		return Bet{}, ErrOutOfRange
	}

	bet := Bet{
		ID:          betID,
		RoundNumber: b.roundID,
		Player:      player,
		Kind:        kind,
		Selection:   selection,
		Stake:       stake,
		AcceptedAt:  time.Now(),
		Settlement:  SettlementPending,
	}
	b.bets = append(b.bets, bet)
	return bet, nil
}

// Freeze transitions the book to read-only; subsequent Accept calls fail.
func (b *Book) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Bets returns a snapshot copy of every accepted bet, in acceptance order.
func (b *Book) Bets() []Bet {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Bet, len(b.bets))
	copy(out, b.bets)
	return out
}

// TotalStake returns the sum of all accepted stakes.
func (b *Book) TotalStake() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, bet := range b.bets {
		total += bet.Stake
	}
	return total
}

// Settle is a pure function over the frozen book and the outcome index: it
// does not mutate the book, so re-running it yields
// bit-identical settlement records. creditTxnID is deterministic in
// (roundID, betID) so crediting it through the ledger is naturally
// idempotent.
func (b *Book) Settle(outcomeIndex int) []Settled {
	b.mu.Lock()
	bets := make([]Bet, len(b.bets))
	copy(bets, b.bets)
	roundID := b.roundID
	b.mu.Unlock()

	results := make([]Settled, 0, len(bets))
	for _, bet := range bets {
		s := Settled{
			BetID:       bet.ID,
			Player:      bet.Player,
			Stake:       bet.Stake,
			CreditTxnID: CreditTxnID(roundID, bet.ID),
		}
		if wins(bet.Kind, bet.Selection, outcomeIndex) {
			mult, _ := multiplierFor(bet.Kind, bet.Selection)
			s.Settlement = SettlementWon
			s.Payout = bet.Stake * mult
		} else {
			s.Settlement = SettlementLost
			s.Payout = 0
		}
		results = append(results, s)
	}
	return results
}
