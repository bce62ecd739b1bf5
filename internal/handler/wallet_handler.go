package handler

import (
	"net/http"

	"skillmint/internal/middleware"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WalletHandler struct {
	ledger *service.Ledger
	topups *service.TopUpService
	log    logrus.FieldLogger
}

func NewWalletHandler(ledger *service.Ledger, topups *service.TopUpService, log logrus.FieldLogger) *WalletHandler {
	return &WalletHandler{ledger: ledger, topups: topups, log: log}
}

// GetWallet returns the current user's balance and counters.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	s, err := h.ledger.Summary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Transactions lists ledger entries newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.ledger.Transactions(c.Request.Context(), middleware.GetUserID(c), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func (h *WalletHandler) CreateTopUp(c *gin.Context) {
	var req struct {
		AmountCents int64 `json:"amount_cents" binding:"required,min=1"`
	}
	if !bindJSON(c, &req) {
		return
	}
	co, err := h.topups.Create(c.Request.Context(), middleware.GetUserID(c), req.AmountCents)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, co)
}

func (h *WalletHandler) VerifyTopUp(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.topups.Verify(c.Request.Context(), middleware.GetUserID(c), req.input())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
