package round

import "time"

// EventType names one of the event kinds C5 publishes to subscribers.
type EventType string

const (
	EventRoundStarted EventType = "round_started"
	EventPhaseChanged EventType = "phase_changed"
	EventRoundResults EventType = "round_results"
	EventRoundEnded   EventType = "round_ended"
	EventRoundAborted EventType = "round_aborted"
	EventRoundStalled EventType = "round_stalled"
	EventRoundCurrent EventType = "round_current"
)

// Event is the envelope published on the stream. Data is one of the
// payload structs below, chosen by Type.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Publisher is implemented by the event bus (component C5). The scheduler
// depends only on this interface so publish can never block a phase
// transition: implementations must enqueue without waiting on any
// subscriber.
type Publisher interface {
	Publish(event Event)
}

type RoundStartedPayload struct {
	RoundNumber     int64     `json:"round_number"`
	Phase           string    `json:"phase"`
	Commitment      string    `json:"commitment"`
	Nonce           int64     `json:"nonce"`
	StartedAt       time.Time `json:"started_at"`
	EndsAt          time.Time `json:"ends_at"`
	BettingDuration int       `json:"betting_duration"`
}

type PhaseChangedPayload struct {
	RoundNumber   int64   `json:"round_number"`
	Phase         string  `json:"phase"`
	OutcomeNumber *int    `json:"outcome_number,omitempty"`
	OutcomeColor  *string `json:"outcome_color,omitempty"`
	TimeRemaining float64 `json:"time_remaining"`
}

type BetSettlement struct {
	BetID      string `json:"bet_id"`
	Player     string `json:"player"`
	Settlement string `json:"settlement"`
	Payout     int64  `json:"payout"`
	Net        int64  `json:"net"`
}

type RoundResultsPayload struct {
	RoundNumber        int64           `json:"round_number"`
	OutcomeNumber      int             `json:"outcome_number"`
	OutcomeColor       string          `json:"outcome_color"`
	ServerSeedRevealed string          `json:"server_seed_revealed"`
	Settlements        []BetSettlement `json:"settlements"`
}

type RoundEndedPayload struct {
	RoundNumber int64 `json:"round_number"`
}

type RoundAbortedPayload struct {
	RoundNumber int64  `json:"round_number"`
	Reason      string `json:"reason"`
}

type RoundStalledPayload struct {
	RoundNumber int64  `json:"round_number"`
	Reason      string `json:"reason"`
}
