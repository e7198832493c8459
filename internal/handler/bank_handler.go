package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/response"
	"github.com/stemsi/quizspin-backend/internal/service"
)

// BankHandler exposes the normalized question bank.
type BankHandler struct {
	bank *service.BankService
	log  zerolog.Logger
}

// NewBankHandler creates a new BankHandler.
func NewBankHandler(bank *service.BankService, log zerolog.Logger) *BankHandler {
	return &BankHandler{
		bank: bank,
		log:  log.With().Str("component", "bank_handler").Logger(),
	}
}

// GetBank godoc
// GET /api/bank
// Returns the whole bank in the nested {category: [{difficulty: [...]}]} layout.
func (h *BankHandler) GetBank(c *gin.Context) {
	bank, err := h.bank.Bank(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Bank unavailable")
		c.Header("Cache-Control", "no-store")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrBankUnavailable)
		return
	}
	response.Success(c, http.StatusOK, bank.Wire())
}

// GetSummary godoc
// GET /api/bank/summary
// Returns per-pool sizes and time limits for the wheel.
func (h *BankHandler) GetSummary(c *gin.Context) {
	sum, err := h.bank.Summary(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Bank unavailable")
		c.Header("Cache-Control", "no-store")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrBankUnavailable)
		return
	}
	response.Success(c, http.StatusOK, sum)
}
