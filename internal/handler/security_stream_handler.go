package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizguard/quizguard/internal/security"
	ws "github.com/quizguard/quizguard/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SecurityStreamHandler streams server-side security events to operators.
type SecurityStreamHandler struct {
	bus      *security.Bus
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewSecurityStreamHandler creates a new SecurityStreamHandler.
func NewSecurityStreamHandler(bus *security.Bus, log zerolog.Logger, allowedOrigins []string) *SecurityStreamHandler {
	return &SecurityStreamHandler{
		bus:      bus,
		log:      log.With().Str("component", "security_stream").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/security/stream
// Upgrades to WebSocket and pushes every security event as it is logged.
// The route is behind the API key middleware.
func (h *SecurityStreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Security stream connected")

	// Bus callbacks must not block, so events go through a buffered channel
	// and a slow subscriber loses events rather than stalling the bus.
	events := make(chan security.Event, 64)
	unsubscribe := h.bus.Subscribe(func(ev security.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	replies := make(chan any, 8)

	// Reader goroutine: all writes happen in the select loop below, since a
	// websocket.Conn supports only one concurrent writer.
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}

			var reply any
			switch msg.Action {
			case ws.ActionPing:
				reply = ws.PongResponse{Event: ws.EventPong}
			case ws.ActionSummary:
				reply = ws.SummaryResponse{Event: ws.EventSummary, Payload: h.bus.Summary()}
			default:
				reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
			}
			// Drop rather than block if the writer has stalled.
			select {
			case replies <- reply:
			default:
			}
		}
	}()

	for {
		select {
		case <-done:
			h.log.Info().Msg("Security stream disconnected")
			return
		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				h.log.Debug().Err(err).Msg("Write failed, closing stream")
				return
			}
		case ev := <-events:
			if err := ws.WriteTyped(conn, ws.SecurityEventResponse{Event: ws.EventSecurityEvent, Payload: ev}); err != nil {
				h.log.Debug().Err(err).Msg("Write failed, closing stream")
				return
			}
		}
	}
}
