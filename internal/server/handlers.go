package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rouletteengine/core/internal/ledger"
	"github.com/rouletteengine/core/internal/round"
)

var errEmptyToken = errors.New("server: empty bearer token")

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"round": fiber.Map{
			"status":              "running",
			"current_round":       s.scheduler.RoundNumber(),
			"connected_subscribers": s.hub.Count(),
		},
	}
	return c.JSON(health)
}

// resolvePlayer extracts "Authorization: Bearer <token>" and resolves it to
// a player id via s.auth.
func (s *FiberServer) resolvePlayer(c *fiber.Ctx) (string, error) {
	header := c.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		token = ""
	}
	return s.auth.ResolvePlayer(token)
}

type placeBetRequest struct {
	RoundNumber int64  `json:"round_number"`
	Kind        string `json:"kind"`
	Selection   string `json:"selection"`
	Stake       int64  `json:"stake"`
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	player, err := s.resolvePlayer(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or invalid bearer token"})
	}

	var req placeBetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	bet, err := s.scheduler.PlaceBet(player, round.BetKind(req.Kind), req.Selection, req.Stake, req.RoundNumber)
	if err != nil {
		return c.Status(statusForBetError(err)).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"accepted":     true,
		"bet_id":       bet.ID,
		"round_number": bet.RoundNumber,
		"kind":         bet.Kind,
		"selection":    bet.Selection,
		"stake":        bet.Stake,
		"settlement":   bet.Settlement,
		"new_balance":  bet.Balance,
	})
}

func statusForBetError(err error) int {
	switch {
	case errors.Is(err, round.ErrBettingClosed):
		return fiber.StatusConflict
	case errors.Is(err, round.ErrUnknownRound):
		return fiber.StatusConflict
	case errors.Is(err, round.ErrBadSelection), errors.Is(err, round.ErrOutOfRange):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, round.ErrSchedulerBusy), errors.Is(err, round.ErrRequestTimeout):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *FiberServer) triggerSpinHandler(c *fiber.Ctx) error {
	triggered, err := s.scheduler.TriggerSpin()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"triggered": triggered})
}

type nextSeedRequest struct {
	ClientSeed string `json:"client_seed"`
}

func (s *FiberServer) nextSeedHandler(c *fiber.Ctx) error {
	var req nextSeedRequest
	if err := c.BodyParser(&req); err != nil || req.ClientSeed == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_seed is required"})
	}
	s.scheduler.SetNextClientSeed(req.ClientSeed)
	return c.JSON(fiber.Map{"accepted": true})
}

func (s *FiberServer) getCurrentRoundHandler(c *fiber.Ctx) error {
	return c.JSON(s.scheduler.Snapshot(time.Now()))
}

func (s *FiberServer) getRoundResultsHandler(c *fiber.Ctx) error {
	if s.results == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "round results not available"})
	}

	roundNumber, err := strconv.ParseInt(c.Params("roundNumber"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid round number"})
	}

	rec, found, err := s.results.Get(c.Context(), roundNumber)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "round not found"})
	}

	return c.JSON(rec)
}
