package handler

import (
	"net/http"

	"skillmint/internal/middleware"
	"skillmint/internal/models"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
	log         logrus.FieldLogger
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService, log logrus.FieldLogger) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, log: log}
}

// Create requests a payout. The wallet is debited only when an admin approves.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req struct {
		AmountCents    int64                 `json:"amount_cents" binding:"required,min=1"`
		PaymentMethod  string                `json:"payment_method" binding:"required"`
		PaymentDetails models.PaymentDetails `json:"payment_details"`
	}
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.withdrawals.Create(c.Request.Context(), service.CreateWithdrawalInput{
		UserID:         middleware.GetUserID(c),
		AmountCents:    req.AmountCents,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *WithdrawalHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.withdrawals.List(c.Request.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	w, err := h.withdrawals.Cancel(c.Request.Context(), middleware.GetUserID(c), c.Param("request_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, w)
}
