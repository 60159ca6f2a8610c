package round

import (
	"testing"
	"time"
)

func TestRound_ToSnapshot_BeforeOutcome(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &Round{
		Number:           1,
		Phase:            PhaseBetting,
		Commitment:       "abc123",
		BettingStartedAt: start,
		BettingEndsAt:    start.Add(15 * time.Second),
		BettingDuration:  15 * time.Second,
	}

	snap := r.ToSnapshot(start.Add(5 * time.Second))

	if snap.RoundNumber != 1 || snap.Phase != "betting" || snap.Commitment != "abc123" {
		t.Errorf("snapshot = %+v, unexpected base fields", snap)
	}
	if snap.BettingDuration != 15 {
		t.Errorf("BettingDuration = %d, want 15", snap.BettingDuration)
	}
	if snap.TimeRemaining != 10 {
		t.Errorf("TimeRemaining = %v, want 10", snap.TimeRemaining)
	}
	if snap.OutcomeNumber != nil || snap.OutcomeColor != nil || snap.ServerSeedRevealed != nil {
		t.Errorf("outcome fields should be nil before the draw: %+v", snap)
	}
}

func TestRound_ToSnapshot_TimeRemainingClampsAtZero(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &Round{
		BettingStartedAt: start,
		BettingEndsAt:    start.Add(15 * time.Second),
		BettingDuration:  15 * time.Second,
	}

	snap := r.ToSnapshot(start.Add(time.Minute))

	if snap.TimeRemaining != 0 {
		t.Errorf("TimeRemaining = %v, want 0", snap.TimeRemaining)
	}
}

func TestRound_ToSnapshot_AfterOutcome(t *testing.T) {
	start := time.Now()
	idx := 17
	r := &Round{
		Number:             2,
		Phase:              PhaseResults,
		BettingStartedAt:   start,
		BettingEndsAt:      start.Add(15 * time.Second),
		BettingDuration:    15 * time.Second,
		OutcomeIndex:       &idx,
		OutcomeColor:       ColorRed,
		ServerSeedRevealed: "deadbeef",
	}

	snap := r.ToSnapshot(start)

	if snap.OutcomeNumber == nil || *snap.OutcomeNumber != 17 {
		t.Errorf("OutcomeNumber = %v, want 17", snap.OutcomeNumber)
	}
	if snap.OutcomeColor == nil || *snap.OutcomeColor != "red" {
		t.Errorf("OutcomeColor = %v, want red", snap.OutcomeColor)
	}
	if snap.ServerSeedRevealed == nil || *snap.ServerSeedRevealed != "deadbeef" {
		t.Errorf("ServerSeedRevealed = %v, want deadbeef", snap.ServerSeedRevealed)
	}
}
