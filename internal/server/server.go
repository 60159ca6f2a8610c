package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/rouletteengine/core/internal/cache"
	"github.com/rouletteengine/core/internal/database"
	"github.com/rouletteengine/core/internal/round"
	"github.com/rouletteengine/core/internal/stream"
)

// AuthResolver maps a bearer token to a stable player id. Real-money auth,
// sessions, and identity are out of scope; this interface exists so the
// client contract layer never hardcodes how that resolution happens.
type AuthResolver interface {
	ResolvePlayer(token string) (string, error)
}

// RoundResultsReader reads a terminated round's persisted audit trail for
// the get_round_results operation.
type RoundResultsReader interface {
	Get(ctx context.Context, roundNumber int64) (round.AuditRecord, bool, error)
}

// FiberServer is the HTTP surface for component C6: bet placement, spin
// triggering, current-round polling, the SSE event stream, and historical
// round results.
type FiberServer struct {
	*fiber.App

	db        database.Service
	cache     cache.Service
	scheduler *round.Scheduler
	hub       *stream.Hub
	auth      AuthResolver
	results   RoundResultsReader
}

// New wires a FiberServer. auth and results may be nil in development; auth
// then falls back to treating the bearer token as the player id directly,
// and get_round_results always reports 404.
func New(db database.Service, cacheSvc cache.Service, scheduler *round.Scheduler, hub *stream.Hub, auth AuthResolver, results RoundResultsReader) *FiberServer {
	if auth == nil {
		auth = StaticTokenResolver{}
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader: "rouletteengine",
			AppName:      "rouletteengine",
		}),

		db:        db,
		cache:     cacheSvc,
		scheduler: scheduler,
		hub:       hub,
		auth:      auth,
		results:   results,
	}

	return server
}

// StaticTokenResolver treats the bearer token itself as the player id. It
// exists so the round engine is exercisable without a real identity
// service; production deployments supply their own AuthResolver.
type StaticTokenResolver struct{}

func (StaticTokenResolver) ResolvePlayer(token string) (string, error) {
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}
