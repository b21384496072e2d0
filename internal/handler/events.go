package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/middleware"
)

// SyncEventBus broadcasts finished syncs to SSE subscribers. Slow
// subscribers miss events rather than block publishers.
type SyncEventBus struct {
	mu   sync.RWMutex
	subs []chan domain.SyncEvent
}

func NewSyncEventBus() *SyncEventBus {
	return &SyncEventBus{}
}

func (b *SyncEventBus) Publish(evt domain.SyncEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *SyncEventBus) Subscribe() chan domain.SyncEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.SyncEvent, 10)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *SyncEventBus) Unsubscribe(ch chan domain.SyncEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// EventsHandler streams sync events over Server-Sent Events.
type EventsHandler struct {
	bus     *SyncEventBus
	maxIdle time.Duration
}

// NewEventsHandler creates a stream handler. Streams end after maxIdle
// without events.
func NewEventsHandler(bus *SyncEventBus, maxIdle time.Duration) *EventsHandler {
	return &EventsHandler{bus: bus, maxIdle: maxIdle}
}

// Register sets up streaming routes.
func (h *EventsHandler) Register(router fiber.Router) {
	router.Get("/projects/events", h.Stream)
}

// Stream sends the caller's sync events as "sync" SSE events.
func (h *EventsHandler) Stream(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ch := h.bus.Subscribe()
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.bus.Unsubscribe(ch)

		fmt.Fprintf(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		idle := time.NewTimer(h.maxIdle)
		defer idle.Stop()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if evt.OwnerID != uc.UserID {
					continue
				}
				data, _ := json.Marshal(evt)
				fmt.Fprintf(w, "event: sync\ndata: %s\n\n", data)
				if err := w.Flush(); err != nil {
					slog.Debug("SSE client gone", "user_id", uc.UserID)
					return
				}
				idle.Reset(h.maxIdle)
			case <-idle.C:
				return
			}
		}
	})
}
