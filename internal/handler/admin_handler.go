package handler

import (
	"net/http"
	"strconv"

	"skillmint/internal/middleware"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	withdrawals *service.WithdrawalService
	commissions *service.CommissionService
	refunds     *service.RefundService
	ledger      *service.Ledger
	log         logrus.FieldLogger
}

func NewAdminHandler(
	withdrawals *service.WithdrawalService,
	commissions *service.CommissionService,
	refunds *service.RefundService,
	ledger *service.Ledger,
	log logrus.FieldLogger,
) *AdminHandler {
	return &AdminHandler{
		withdrawals: withdrawals,
		commissions: commissions,
		refunds:     refunds,
		ledger:      ledger,
		log:         log,
	}
}

func queryUint(c *gin.Context, key string) uint {
	n, _ := strconv.ParseUint(c.Query(key), 10, 64)
	return uint(n)
}

// ListWithdrawals handles GET /admin/withdrawals?status=&user_id=.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.withdrawals.List(c.Request.Context(), queryUint(c, "user_id"), c.Query("status"), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	w, err := h.withdrawals.Approve(c.Request.Context(), middleware.GetUserID(c), c.Param("request_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.withdrawals.Reject(c.Request.Context(), middleware.GetUserID(c), c.Param("request_id"), req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// CompleteWithdrawal records the payout reference from the bank or UPI transfer.
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transaction_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.withdrawals.Complete(c.Request.Context(), middleware.GetUserID(c), c.Param("request_id"), req.TransactionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListCommissions handles GET /admin/commissions?status=&affiliate_id=.
func (h *AdminHandler) ListCommissions(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.commissions.List(c.Request.Context(), queryUint(c, "affiliate_id"), c.Query("status"), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func (h *AdminHandler) ApproveCommission(c *gin.Context) {
	var req struct {
		Note     string `json:"note"`
		Override bool   `json:"override"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	out, err := h.commissions.Approve(c.Request.Context(), c.Param("commission_id"), req.Note, req.Override)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) RejectCommission(c *gin.Context) {
	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.commissions.Reject(c.Request.Context(), c.Param("commission_id"), req.Note)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) PayCommission(c *gin.Context) {
	var req struct {
		Method        string `json:"method"`
		ExternalTxnID string `json:"external_txn_id"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	out, err := h.commissions.Pay(c.Request.Context(), c.Param("commission_id"), req.Method, req.ExternalTxnID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) ListRefundRequests(c *gin.Context) {
	page, limit := parsePagination(c)
	list, err := h.refunds.ListRequests(c.Request.Context(), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "page": page, "limit": limit})
}

func (h *AdminHandler) ApproveRefund(c *gin.Context) {
	order, err := h.refunds.Approve(c.Request.Context(), middleware.GetUserID(c), c.Param("order_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *AdminHandler) RejectRefund(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	order, err := h.refunds.Reject(c.Request.Context(), middleware.GetUserID(c), c.Param("order_id"), req.Note)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetCommissionLevels handles GET /admin/settings/commission-levels.
func (h *AdminHandler) GetCommissionLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.commissions.Levels(c.Request.Context())})
}

// UpdateCommissionLevels takes {"levels": {"1": 10, "2": 5, "3": 2}}.
func (h *AdminHandler) UpdateCommissionLevels(c *gin.Context) {
	var req struct {
		Levels map[int]float64 `json:"levels" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.commissions.SetLevels(c.Request.Context(), req.Levels); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": h.commissions.Levels(c.Request.Context())})
}

// CreateCorrection posts a manual ledger entry against a user's wallet.
func (h *AdminHandler) CreateCorrection(c *gin.Context) {
	var req struct {
		UserID      uint   `json:"user_id" binding:"required"`
		Type        string `json:"type" binding:"required"`
		AmountCents int64  `json:"amount_cents" binding:"required,min=1"`
		Reason      string `json:"reason" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	tx, err := h.ledger.Correct(c.Request.Context(), middleware.GetUserID(c), req.UserID, req.Type, req.AmountCents, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}
