package round

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rouletteengine/core/internal/fairness"
	"github.com/rouletteengine/core/internal/ledger"
)

var (
	// ErrSchedulerBusy is returned when a request channel is full; callers
	// should treat it like a 503 and let the client retry.
	ErrSchedulerBusy = errors.New("round: scheduler busy")
	// ErrRequestTimeout is returned when the scheduler accepted a request but
	// didn't answer within the configured deadline.
	ErrRequestTimeout = errors.New("round: request timed out")
	// ErrUnknownRound is returned when a request names a round number other
	// than the one currently in BETTING.
	ErrUnknownRound = errors.New("round: unknown round")
)

const (
	stalledMaxRetries   = 3
	stalledRetryBackoff = 100 * time.Millisecond
	interRoundPause     = 1 * time.Second
)

// LedgerApplier is the subset of *ledger.Ledger the scheduler needs. It
// exists so tests can drive the scheduler against an in-memory fake instead
// of a real Postgres-backed Ledger.
type LedgerApplier interface {
	Apply(ctx context.Context, txnID, player string, delta int64, reason string, roundID *int64) (ledger.Result, error)
	BatchApply(ctx context.Context, entries []ledger.Entry) ([]ledger.Result, error)
}

// Config bundles the parameters a Scheduler needs that sit under
// server-side configuration authority: clients never dictate phase timing
// or stake limits.
type Config struct {
	BettingDuration    time.Duration
	SpinningDuration   time.Duration
	ResultsDuration    time.Duration
	MinStake           int64
	MaxStake           int64
	DefaultClientSeed  string
	BetRequestDeadline time.Duration
}

type betRequest struct {
	player       string
	kind         BetKind
	selection    string
	stake        int64
	responseChan chan betResponse
}

type betResponse struct {
	bet Bet
	err error
}

type spinRequest struct {
	responseChan chan spinResponse
}

type spinResponse struct {
	triggered bool // true if this call was the one that triggered the spin
	err       error
}

// Scheduler is the single writer of round state (component C4). Every
// mutation to the current round or bet book happens on the goroutine
// started by Start; all other access goes through channels, so the state
// machine never needs a mutex of its own beyond the one guarding reads of
// the published snapshot.
type Scheduler struct {
	cfg     Config
	ledger  LedgerApplier
	pub     Publisher
	alerter Alerter
	audit   AuditRecorder

	stopCh chan struct{}
	doneCh chan struct{}

	// mu guards every field below, including betCh/spinCh. Each round gets
	// its own pair of channels, swapped in under mu at the same moment
	// current/book are; PlaceBet/TriggerSpin snapshot the round, its phase
	// and its channel together, so a request that loses the race against a
	// phase transition lands on a channel nobody will ever read again
	// instead of being picked up by the next round's betting phase.
	mu             sync.RWMutex
	current        *Round
	book           *Book
	betCh          chan betRequest
	spinCh         chan spinRequest
	nextClientSeed string

	nonce int64
}

// NewScheduler wires a Scheduler. pub, alerter and audit may not be nil;
// pass LogAlerter{} and NoopAuditRecorder{} where the caller has nothing
// more specific.
func NewScheduler(cfg Config, l LedgerApplier, pub Publisher, alerter Alerter, audit AuditRecorder) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		ledger:  l,
		pub:     pub,
		alerter: alerter,
		audit:   audit,
		betCh:   make(chan betRequest, 256),
		spinCh:  make(chan spinRequest, 16),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the scheduler's single goroutine. It must be called at
// most once.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop signals the scheduler to exit after the round in progress reaches
// ENDED, then blocks until it has.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Snapshot returns the current round's public wire representation.
func (s *Scheduler) Snapshot(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}
	}
	return s.current.ToSnapshot(now)
}

// RoundNumber returns the number of the round currently in progress, or 0
// before the first round starts.
func (s *Scheduler) RoundNumber() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return s.current.Number
}

// SetNextClientSeed queues a player-supplied seed to be used for the next
// round that starts. It is consumed once: after that round starts, the
// scheduler reverts to cfg.DefaultClientSeed until another seed is queued.
func (s *Scheduler) SetNextClientSeed(seed string) {
	s.mu.Lock()
	s.nextClientSeed = seed
	s.mu.Unlock()
}

func (s *Scheduler) consumeClientSeed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextClientSeed == "" {
		return s.cfg.DefaultClientSeed
	}
	seed := s.nextClientSeed
	s.nextClientSeed = ""
	return seed
}

// PlaceBet submits a bet to the scheduler goroutine and waits for it to be
// accepted or rejected, honoring cfg.BetRequestDeadline. roundNumber must
// name the round currently in BETTING; a stale or future round number, or a
// call made while the round is in any other phase, is rejected synchronously
// without ever reaching the scheduler goroutine.
func (s *Scheduler) PlaceBet(player string, kind BetKind, selection string, stake int64, roundNumber int64) (Bet, error) {
	s.mu.RLock()
	rd := s.current
	ch := s.betCh
	s.mu.RUnlock()

	if rd == nil || rd.Phase != PhaseBetting {
		return Bet{}, ErrBettingClosed
	}
	if roundNumber != rd.Number {
		return Bet{}, ErrUnknownRound
	}

	req := betRequest{
		player:       player,
		kind:         kind,
		selection:    selection,
		stake:        stake,
		responseChan: make(chan betResponse, 1),
	}

	select {
	case ch <- req:
	default:
		return Bet{}, ErrSchedulerBusy
	}

	select {
	case resp := <-req.responseChan:
		return resp.bet, resp.err
	case <-time.After(s.cfg.BetRequestDeadline):
		return Bet{}, ErrRequestTimeout
	}
}

// TriggerSpin requests an early end to the betting window. The caller whose
// request ends the window gets triggered=true. Later calls for the same round
// are not reported as successful no-ops: once the phase has left BETTING they
// are rejected synchronously with ErrBettingClosed (like PlaceBet), and a call
// that reaches the round's spin channel after the window already closed is
// never read and ends with ErrRequestTimeout.
func (s *Scheduler) TriggerSpin() (bool, error) {
	s.mu.RLock()
	rd := s.current
	ch := s.spinCh
	s.mu.RUnlock()

	if rd == nil || rd.Phase != PhaseBetting {
		return false, ErrBettingClosed
	}

	req := spinRequest{responseChan: make(chan spinResponse, 1)}

	select {
	case ch <- req:
	default:
		return false, ErrSchedulerBusy
	}

	select {
	case resp := <-req.responseChan:
		return resp.triggered, resp.err
	case <-time.After(s.cfg.BetRequestDeadline):
		return false, ErrRequestTimeout
	}
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		default:
			s.runRound()
		}
		select {
		case <-s.stopCh:
			return
		case <-time.After(interRoundPause):
		}
	}
}

// runRound drives one round through BETTING -> SPINNING -> RESULTS -> ENDED.
// It is the only function in this package that mutates s.current/s.book;
// everything else reaches them through PlaceBet/TriggerSpin/Snapshot.
func (s *Scheduler) runRound() {
	s.nonce++
	nonce := s.nonce

	serverSeed := fairness.GenerateSeed()
	commitment := fairness.HashCommitment(serverSeed)
	clientSeed := s.consumeClientSeed()

	now := time.Now()
	rd := &Round{
		Number:           nonce,
		Phase:            PhaseBetting,
		ServerSeed:       serverSeed,
		Commitment:       commitment,
		ClientSeed:       clientSeed,
		Nonce:            nonce,
		BettingStartedAt: now,
		BettingEndsAt:    now.Add(s.cfg.BettingDuration),
		BettingDuration:  s.cfg.BettingDuration,
	}
	book := OpenBook(rd.Number, s.cfg.MinStake, s.cfg.MaxStake)
	betCh := make(chan betRequest, 256)
	spinCh := make(chan spinRequest, 16)

	s.mu.Lock()
	s.current = rd
	s.book = book
	s.betCh = betCh
	s.spinCh = spinCh
	s.mu.Unlock()

	s.pub.Publish(Event{Type: EventRoundStarted, Data: RoundStartedPayload{
		RoundNumber:     rd.Number,
		Phase:           string(PhaseBetting),
		Commitment:      commitment,
		Nonce:           nonce,
		StartedAt:       rd.BettingStartedAt,
		EndsAt:          rd.BettingEndsAt,
		BettingDuration: int(s.cfg.BettingDuration.Seconds()),
	}})

	s.runBettingPhase(rd, book, betCh, spinCh)
	s.advancePhase(rd, PhaseSpinning)

	outcomeIndex, rngOK := s.drawOutcome(rd, book)
	if !rngOK {
		s.abortRound(rd, book, "rng failure")
		return
	}

	time.Sleep(s.cfg.SpinningDuration)

	settlements := s.settleRound(rd, book, outcomeIndex)
	s.advancePhase(rd, PhaseResults)
	s.publishResults(rd, settlements)
	s.recordAudit(rd, book, settlements)

	time.Sleep(s.cfg.ResultsDuration)

	s.advancePhase(rd, PhaseEnded)
	s.pub.Publish(Event{Type: EventRoundEnded, Data: RoundEndedPayload{RoundNumber: rd.Number}})
}

// runBettingPhase processes bet and spin-trigger requests until the betting
// timer fires or a trigger ends the window early. betCh/spinCh are this
// round's own channels; PlaceBet/TriggerSpin only ever hand requests to the
// channel pair current when they checked the phase, so nothing sent here can
// belong to a different round.
func (s *Scheduler) runBettingPhase(rd *Round, book *Book, betCh chan betRequest, spinCh chan spinRequest) {
	timer := time.NewTimer(s.cfg.BettingDuration)
	defer timer.Stop()
	triggered := false

	for {
		select {
		case <-timer.C:
			return
		case req := <-betCh:
			s.handleBetRequest(rd, book, req)
		case req := <-spinCh:
			if triggered {
				req.responseChan <- spinResponse{triggered: false}
				continue
			}
			triggered = true
			req.responseChan <- spinResponse{triggered: true}
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) handleBetRequest(rd *Round, book *Book, req betRequest) {
	// Validate before touching the ledger so a malformed or out-of-range bet
	// is rejected without any debit.
	if _, ok := multiplierFor(req.kind, req.selection); !ok {
		req.responseChan <- betResponse{err: ErrBadSelection}
		return
	}
	if req.stake < s.cfg.MinStake || req.stake > s.cfg.MaxStake {
		req.responseChan <- betResponse{err: ErrOutOfRange}
		return
	}

	seq := book.NextSequence()
	betID := fmt.Sprintf("%d-%d", rd.Number, seq)

	debitTxnID := DebitTxnID(rd.Number, req.player, seq)
	roundID := rd.Number
	debitResult, err := s.ledger.Apply(context.Background(), debitTxnID, req.player, -req.stake, "bet_debit", &roundID)
	if err != nil {
		req.responseChan <- betResponse{err: err}
		return
	}

	bet, err := book.Accept(betID, req.player, req.kind, req.selection, req.stake)
	if err != nil {
		// Bet rejected after the debit succeeded (e.g. betting just closed
		// underneath us): refund immediately so the player isn't charged
		// for nothing.
		refundTxnID := RefundTxnID(rd.Number, betID)
		_, _ = s.ledger.Apply(context.Background(), refundTxnID, req.player, req.stake, "bet_rejected_refund", &roundID)
		req.responseChan <- betResponse{err: err}
		return
	}

	bet.LedgerTxnID = debitTxnID
	bet.Balance = debitResult.Balance
	req.responseChan <- betResponse{bet: bet}
}

// advancePhase updates the phase under lock and publishes PHASE_CHANGED.
func (s *Scheduler) advancePhase(rd *Round, phase Phase) {
	s.mu.Lock()
	rd.Phase = phase
	s.mu.Unlock()

	payload := PhaseChangedPayload{
		RoundNumber:   rd.Number,
		Phase:         string(phase),
		TimeRemaining: 0,
	}
	if rd.OutcomeIndex != nil {
		idx := *rd.OutcomeIndex
		payload.OutcomeNumber = &idx
		color := string(rd.OutcomeColor)
		payload.OutcomeColor = &color
	}
	s.pub.Publish(Event{Type: EventPhaseChanged, Data: payload})
}

// drawOutcome freezes the book (establishing happens-before with Settle)
// and draws the wheel index exactly once. It reports ok=false only in the
// defensive case where the draw produced an index outside the wheel, which
// fairness.Draw's modulo arithmetic makes unreachable in practice; the
// check exists so a future change to Draw can't silently corrupt a round.
func (s *Scheduler) drawOutcome(rd *Round, book *Book) (int, bool) {
	book.Freeze()

	index, _ := fairness.Draw(rd.ServerSeed, rd.ClientSeed, int(rd.Nonce))
	if index < 0 || index >= fairness.WheelSlots {
		return 0, false
	}

	s.mu.Lock()
	rd.OutcomeIndex = &index
	rd.OutcomeColor = ColorOf(index)
	s.mu.Unlock()

	return index, true
}

// abortRound refunds every bet placed so far and emits ROUND_ABORTED. The
// next loop iteration starts a fresh round with the next nonce; this round
// number is never reused.
func (s *Scheduler) abortRound(rd *Round, book *Book, reason string) {
	roundID := rd.Number
	for _, bet := range book.Bets() {
		refundTxnID := RefundTxnID(rd.Number, bet.ID)
		_, err := s.ledger.Apply(context.Background(), refundTxnID, bet.Player, bet.Stake, "round_aborted_refund", &roundID)
		if err != nil {
			log.Printf("round %d: refund failed for bet %s: %v", rd.Number, bet.ID, err)
		}
	}

	s.mu.Lock()
	rd.Phase = PhaseEnded
	s.mu.Unlock()

	s.pub.Publish(Event{Type: EventRoundAborted, Data: RoundAbortedPayload{RoundNumber: rd.Number, Reason: reason}})
}

// settleRound computes settlements and submits every winning credit as one
// atomic ledger batch, retrying transient failures a bounded number of
// times before alerting and moving on rather than blocking the state
// machine forever.
func (s *Scheduler) settleRound(rd *Round, book *Book, outcomeIndex int) []Settled {
	settlements := book.Settle(outcomeIndex)

	roundID := rd.Number
	entries := make([]ledger.Entry, 0, len(settlements))
	for _, st := range settlements {
		if st.Payout <= 0 {
			continue
		}
		entries = append(entries, ledger.Entry{
			TxnID:   st.CreditTxnID,
			Player:  st.Player,
			Delta:   st.Payout,
			Reason:  "bet_credit",
			RoundID: &roundID,
		})
	}

	if len(entries) > 0 {
		var err error
		for attempt := 0; attempt < stalledMaxRetries; attempt++ {
			_, err = s.ledger.BatchApply(context.Background(), entries)
			if err == nil {
				break
			}
			time.Sleep(stalledRetryBackoff * time.Duration(attempt+1))
		}
		if err != nil {
			s.alerter.Alert(context.Background(), rd.Number, err.Error())
			s.pub.Publish(Event{Type: EventRoundStalled, Data: RoundStalledPayload{RoundNumber: rd.Number, Reason: err.Error()}})
		}
	}

	s.mu.Lock()
	rd.ServerSeedRevealed = rd.ServerSeed
	s.mu.Unlock()

	return settlements
}

func (s *Scheduler) publishResults(rd *Round, settlements []Settled) {
	payload := RoundResultsPayload{
		RoundNumber:        rd.Number,
		OutcomeNumber:      *rd.OutcomeIndex,
		OutcomeColor:       string(rd.OutcomeColor),
		ServerSeedRevealed: rd.ServerSeedRevealed,
		Settlements:        make([]BetSettlement, 0, len(settlements)),
	}
	for _, st := range settlements {
		net := st.Payout - st.Stake
		payload.Settlements = append(payload.Settlements, BetSettlement{
			BetID:      st.BetID,
			Player:     st.Player,
			Settlement: string(st.Settlement),
			Payout:     st.Payout,
			Net:        net,
		})
	}
	s.pub.Publish(Event{Type: EventRoundResults, Data: payload})
}

func (s *Scheduler) recordAudit(rd *Round, book *Book, settlements []Settled) {
	var paidOut int64
	for _, st := range settlements {
		paidOut += st.Payout
	}
	staked := book.TotalStake()

	rec := AuditRecord{
		RoundNumber:        rd.Number,
		Commitment:         rd.Commitment,
		ServerSeedRevealed: rd.ServerSeedRevealed,
		ClientSeed:         rd.ClientSeed,
		Nonce:              rd.Nonce,
		OutcomeIndex:       *rd.OutcomeIndex,
		OutcomeColor:       string(rd.OutcomeColor),
		TotalStaked:        staked,
		TotalPaidOut:       paidOut,
		HouseTakeRatio:     houseTakeRatio(staked, paidOut),
		BetCount:           len(settlements),
		StartedAt:          rd.BettingStartedAt,
		EndedAt:            time.Now(),
	}

	if err := s.audit.Record(context.Background(), rec); err != nil {
		log.Printf("round %d: audit record failed: %v", rd.Number, err)
	}
}
