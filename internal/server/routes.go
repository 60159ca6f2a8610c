package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// RegisterFiberRoutes wires component C6's HTTP surface onto the
// underlying fiber.App.
func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	round := s.App.Group("/round")
	round.Post("/bet", s.placeBetHandler)
	round.Post("/spin", s.triggerSpinHandler)
	round.Post("/next-seed", s.nextSeedHandler)
	round.Get("/current", s.getCurrentRoundHandler)
	round.Get("/stream", s.streamHandler)
	round.Get("/:roundNumber/results", s.getRoundResultsHandler)

	// Legacy push channel kept alongside SSE: same C5 events, a second
	// transport rather than a second source of truth.
	s.App.Get("/round/ws", websocket.New(s.websocketStreamHandler))
}
