package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/response"
	"github.com/stemsi/quizspin-backend/internal/service"
)

// QuestionHandler serves question draws.
type QuestionHandler struct {
	quiz   *service.QuizService
	cookie middleware.CookieConfig
	log    zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(quiz *service.QuizService, cookie middleware.CookieConfig, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		quiz:   quiz,
		cookie: cookie,
		log:    log.With().Str("component", "question_handler").Logger(),
	}
}

// DrawQuestion godoc
// GET /api/questions?category=&difficulty=
// Draws the next unseen question of a pool and moves the session onto it.
func (h *QuestionHandler) DrawQuestion(c *gin.Context) {
	result, _, carrier, err := h.quiz.Draw(
		c.Request.Context(),
		middleware.GetSession(c),
		c.Query("category"),
		c.Query("difficulty"),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingParameters):
			response.Fail(c, http.StatusBadRequest, response.ErrMissingParameters)
		case errors.Is(err, service.ErrNoQuestionsAvailable):
			response.FailWithData(c, http.StatusNotFound, response.ErrNoQuestionsAvailable,
				gin.H{"remaining": 0, "totalInPool": 0})
		case errors.Is(err, service.ErrBankUnavailable):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrBankUnavailable)
		default:
			h.log.Error().Err(err).Msg("Question draw failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	middleware.WriteCarrier(c, h.cookie, carrier)
	response.Success(c, http.StatusOK, result)
}
