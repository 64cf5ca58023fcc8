package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/riskcore/internal/events"
)

const (
	streamWriteTimeout     = 10 * time.Second
	defaultStreamHeartbeat = 30 * time.Second
)

// EventsStreamHandler streams analysis events over a WebSocket
type EventsStreamHandler struct {
	broadcaster *events.Broadcaster
	heartbeat   time.Duration
	log         zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(broadcaster *events.Broadcaster, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		broadcaster: broadcaster,
		heartbeat:   defaultStreamHeartbeat,
		log:         log.With().Str("handler", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream. The optional portfolio_id query
// parameter limits the stream to one portfolio.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")

	// The stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := h.broadcaster.Subscribe(portfolioID)
	defer h.broadcaster.Unsubscribe(ch)

	// ctx is cancelled when the client goes away
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Str("portfolio_id", portfolioID).Msg("Client connected to event stream")

	if err := h.write(ctx, conn, events.Event{Type: events.Connected, PortfolioID: portfolioID, Timestamp: time.Now().UTC()}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := h.write(ctx, conn, event); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := h.write(ctx, conn, events.Event{Type: events.Heartbeat, Timestamp: time.Now().UTC()}); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, event events.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, event); err != nil {
		h.log.Debug().Err(err).Str("event_type", string(event.Type)).Msg("Failed to write event")
		return err
	}
	return nil
}
