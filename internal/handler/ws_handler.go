package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/model"
	"github.com/stemsi/quizspin-backend/internal/service"
	ws "github.com/stemsi/quizspin-backend/internal/websocket"
)

const tickInterval = time.Second

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

// WSHandler streams the question countdown to the client.
type WSHandler struct {
	pools    service.PoolProvider
	log      zerolog.Logger
	upgrader websocket.Upgrader
	shutdown <-chan struct{}
	now      func() time.Time
}

// NewWSHandler creates a new WSHandler. Open streams end when shutdown closes.
func NewWSHandler(pools service.PoolProvider, log zerolog.Logger, allowedOrigins []string, shutdown <-chan struct{}) *WSHandler {
	return &WSHandler{
		pools:    pools,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		shutdown: shutdown,
		now:      time.Now,
	}
}

// TimerStream godoc
// WS /ws/v1/timer
// Sends one tick per second for the session's running countdown, then a
// timeout frame, then closes. Every tick is recomputed from the persisted
// start time. A countdown that has not started gets a single ready tick.
func (h *WSHandler) TimerStream(c *gin.Context) {
	session := middleware.GetSession(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	if !session.InQuestion() {
		h.writeFinal(conn, ws.ErrorResponse{Event: ws.EventError, Error: "no active question"}, "no active question", h.log)
		return
	}

	duration := model.DefaultQuestionSeconds
	if session.TimerDuration != nil {
		duration = *session.TimerDuration
	}
	if session.TimerStartedAt == nil {
		h.writeFinal(conn, ws.TickResponse{Event: ws.EventTick, Phase: model.PhaseReady, SecondsLeft: duration}, "countdown not started", h.log)
		return
	}

	wsLog := h.log.With().
		Str("category", *session.Category).
		Str("difficulty", string(*session.Difficulty)).
		Int("index", *session.QuestionIndex).
		Logger()
	wsLog.Debug().Msg("Timer stream opened")

	// Reads run on their own goroutine; only this one writes.
	closed := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(closed)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	if h.tick(c, conn, session, duration, wsLog) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-h.shutdown:
			ws.CloseNormal(conn, "server shutting down")
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
			if h.tick(c, conn, session, duration, wsLog) {
				return
			}
		}
	}
}

// tick writes one frame and reports whether the stream is over.
func (h *WSHandler) tick(c *gin.Context, conn *websocket.Conn, s model.SessionState, duration int, wsLog zerolog.Logger) bool {
	left, started := service.RemainingSeconds(s.TimerStartedAt, duration, h.now())
	phase := service.RecoverPhase(started, left)
	if phase == model.PhaseRunning {
		if err := ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, Phase: phase, SecondsLeft: left}); err != nil {
			wsLog.Debug().Err(err).Msg("Tick not delivered, closing stream")
			return true
		}
		return false
	}

	h.writeFinal(conn, ws.TimeoutResponse{
		Event:         ws.EventTimeout,
		Phase:         phase,
		CorrectLetter: h.correctLetter(c, s),
	}, "timeout", wsLog)
	wsLog.Debug().Msg("Timer stream reached timeout")
	return true
}

// writeFinal sends the last frame of a stream, then a normal close.
func (h *WSHandler) writeFinal(conn *websocket.Conn, frame interface{}, reason string, log zerolog.Logger) {
	if err := ws.WriteTyped(conn, frame); err != nil {
		log.Debug().Err(err).Str("reason", reason).Msg("Final frame not delivered")
	}
	ws.CloseNormal(conn, reason)
}

// correctLetter is best-effort: the answer letter is only a convenience on
// the timeout frame.
func (h *WSHandler) correctLetter(c *gin.Context, s model.SessionState) string {
	pool, err := h.pools.GetPool(c.Request.Context(), *s.Category, *s.Difficulty)
	if err != nil || *s.QuestionIndex >= len(pool) {
		return ""
	}
	return pool[*s.QuestionIndex].CorrectLetter()
}
