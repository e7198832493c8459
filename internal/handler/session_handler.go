package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/model"
	"github.com/stemsi/quizspin-backend/internal/response"
	"github.com/stemsi/quizspin-backend/internal/service"
	"github.com/stemsi/quizspin-backend/internal/validator"
)

// SessionHandler handles the signed session cookie endpoints.
type SessionHandler struct {
	store  *service.SessionStore
	quiz   *service.QuizService
	cookie middleware.CookieConfig
	log    zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store *service.SessionStore, quiz *service.QuizService, cookie middleware.CookieConfig, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		quiz:   quiz,
		cookie: cookie,
		log:    log.With().Str("component", "session_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/session
// Returns the current session; an invalid cookie has already been dropped.
func (h *SessionHandler) GetSession(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"session": middleware.GetSession(c)})
}

// UpdateSession godoc
// POST /api/session
// Merges a partial session; used indices are unioned.
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	h.merge(c, service.MergeUnion)
}

// ReplaceSession godoc
// POST /api/session/replace
// Merges a partial session; a supplied usedQuestions replaces the ledger.
func (h *SessionHandler) ReplaceSession(c *gin.Context) {
	h.merge(c, service.MergeReplace)
}

func (h *SessionHandler) merge(c *gin.Context, mode service.MergeMode) {
	var patch model.SessionPatch
	if fields := validator.Bind(c, &patch); fields != nil {
		code := response.ErrValidation
		if _, malformed := fields["detail"]; malformed {
			code = response.ErrInvalidPayload
		}
		response.FailWithFields(c, http.StatusBadRequest, code, fields)
		return
	}

	state, carrier, err := h.store.MergeWrite(middleware.GetSession(c), patch, mode)
	if err != nil {
		h.log.Error().Err(err).Msg("Session write failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	middleware.WriteCarrier(c, h.cookie, carrier)
	response.Success(c, http.StatusOK, gin.H{"session": state})
}

// DeleteSession godoc
// DELETE /api/session
// Clears the whole session, used indices included.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	middleware.WriteCarrier(c, h.cookie, h.quiz.Reset())
	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// StartTimer godoc
// POST /api/session/timer
// Stamps the countdown start of the current question with the server clock.
func (h *SessionHandler) StartTimer(c *gin.Context) {
	state, carrier, err := h.quiz.StartTimer(middleware.GetSession(c))
	h.respond(c, state, carrier, err)
}

// Finish godoc
// POST /api/session/finish
// Returns to the wheel keeping every used index.
func (h *SessionHandler) Finish(c *gin.Context) {
	state, carrier, err := h.quiz.Finish(middleware.GetSession(c))
	h.respond(c, state, carrier, err)
}

// GoBack godoc
// POST /api/session/back
// Returns to the wheel and makes the current question drawable again.
func (h *SessionHandler) GoBack(c *gin.Context) {
	state, carrier, err := h.quiz.GoBack(middleware.GetSession(c))
	h.respond(c, state, carrier, err)
}

// GetRecovery godoc
// GET /api/session/recovery
// Rebuilds the question screen after a reload, reconciling the timer.
func (h *SessionHandler) GetRecovery(c *gin.Context) {
	rec, carrier, err := h.quiz.Recover(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		if errors.Is(err, service.ErrBankUnavailable) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrBankUnavailable)
			return
		}
		h.log.Error().Err(err).Msg("Session recovery failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if carrier != nil {
		middleware.WriteCarrier(c, h.cookie, *carrier)
	}
	response.Success(c, http.StatusOK, rec)
}

func (h *SessionHandler) respond(c *gin.Context, state model.SessionState, carrier service.Carrier, err error) {
	if err != nil {
		if errors.Is(err, service.ErrNoActiveQuestion) {
			response.Fail(c, http.StatusConflict, response.ErrNoActiveQuestion)
			return
		}
		h.log.Error().Err(err).Msg("Session write failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	middleware.WriteCarrier(c, h.cookie, carrier)
	response.Success(c, http.StatusOK, gin.H{"session": state})
}
