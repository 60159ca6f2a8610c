package server

import (
	"bufio"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/rouletteengine/core/internal/cache"
	"github.com/rouletteengine/core/internal/round"
)

const sseKeepalive = 25 * time.Second

// streamHandler implements subscribe_round_stream over SSE: one bounded
// queue per connection, ROUND_CURRENT sent immediately, then every event
// the hub fans out until the client disconnects or its queue overflows.
func (s *FiberServer) streamHandler(c *fiber.Ctx) error {
	sub := s.hub.Subscribe()

	player, err := s.resolvePlayer(c)
	if err == nil && s.cache != nil {
		cache.MarkSubscriberPresent(c.Context(), s.cache.GetClient(), s.scheduler.RoundNumber(), player)
	}

	current := round.Event{Type: round.EventRoundCurrent, Data: s.scheduler.Snapshot(time.Now())}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer s.hub.Unsubscribe(sub)

		if !writeSSEEvent(w, current) {
			return
		}

		ticker := time.NewTicker(sseKeepalive)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if !writeSSEEvent(w, ev) {
					return
				}
			case <-sub.Done():
				return
			case <-ticker.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeSSEEvent(w *bufio.Writer, ev round.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[STREAM] marshal error: %v", err)
		return true
	}
	if _, err := w.WriteString("event: " + string(ev.Type) + "\n"); err != nil {
		return false
	}
	if _, err := w.WriteString("data: "); err != nil {
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

// websocketStreamHandler mirrors the SSE stream over a websocket
// connection for clients that prefer a persistent socket. It carries the
// same C5 events, not a second source of truth.
func (s *FiberServer) websocketStreamHandler(conn *websocket.Conn) {
	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	current := round.Event{Type: round.EventRoundCurrent, Data: s.scheduler.Snapshot(time.Now())}
	if payload, err := json.Marshal(current); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[STREAM] websocket write error: %v", err)
				return
			}
		case <-sub.Done():
			return
		}
	}
}
