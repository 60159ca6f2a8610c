package round

import "time"

// Phase is one of the four states a round moves through.
type Phase string

const (
	PhaseBetting  Phase = "betting"
	PhaseSpinning Phase = "spinning"
	PhaseResults  Phase = "results"
	PhaseEnded    Phase = "ended"
)

// Round is the authoritative snapshot of one round's public and private
// state. ServerSeed is never exposed until RESULTS.
type Round struct {
	Number              int64
	Phase               Phase
	ServerSeed          string
	Commitment          string
	ClientSeed          string
	Nonce               int64
	BettingStartedAt    time.Time
	BettingEndsAt       time.Time
	BettingDuration     time.Duration
	OutcomeIndex        *int
	OutcomeColor        Color
	ServerSeedRevealed  string
}

// Snapshot is the wire-level representation sent to clients (ROUND_CURRENT
// and the initial state of every subscription), matching the documented wire JSON
// shape exactly.
type Snapshot struct {
	RoundNumber        int64     `json:"round_number"`
	Phase              string    `json:"phase"`
	Commitment         string    `json:"commitment"`
	StartedAt          time.Time `json:"started_at"`
	EndsAt             time.Time `json:"ends_at"`
	BettingDuration    int       `json:"betting_duration"`
	TimeRemaining      float64   `json:"time_remaining"`
	OutcomeNumber      *int      `json:"outcome_number"`
	OutcomeColor       *string   `json:"outcome_color"`
	ServerSeedRevealed *string   `json:"server_seed_revealed"`
}

// ToSnapshot renders the current round as the public wire representation,
// computing time_remaining relative to now so clients need not rely on a
// continuous tick stream.
func (r *Round) ToSnapshot(now time.Time) Snapshot {
	remaining := r.BettingEndsAt.Sub(now).Seconds()
	if remaining < 0 {
		remaining = 0
	}

	snap := Snapshot{
		RoundNumber:     r.Number,
		Phase:           string(r.Phase),
		Commitment:      r.Commitment,
		StartedAt:       r.BettingStartedAt,
		EndsAt:          r.BettingEndsAt,
		BettingDuration: int(r.BettingDuration.Seconds()),
		TimeRemaining:   remaining,
	}

	if r.OutcomeIndex != nil {
		idx := *r.OutcomeIndex
		snap.OutcomeNumber = &idx
		color := string(r.OutcomeColor)
		snap.OutcomeColor = &color
	}
	if r.ServerSeedRevealed != "" {
		seed := r.ServerSeedRevealed
		snap.ServerSeedRevealed = &seed
	}

	return snap
}
