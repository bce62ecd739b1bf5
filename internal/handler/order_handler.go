package handler

import (
	"net/http"

	"skillmint/internal/middleware"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	orders  *service.OrderService
	refunds *service.RefundService
	log     logrus.FieldLogger
}

func NewOrderHandler(orders *service.OrderService, refunds *service.RefundService, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orders: orders, refunds: refunds, log: log}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req struct {
		CourseID      uint   `json:"course_id" binding:"required"`
		ReferralCode  string `json:"referral_code"`
		CouponCode    string `json:"coupon_code"`
		PaymentMethod string `json:"payment_method"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		UserID:        middleware.GetUserID(c),
		CourseID:      req.CourseID,
		ReferralCode:  req.ReferralCode,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
		IPAddress:     c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type verifyRequest struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	PaymentID      string `json:"payment_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

func (r verifyRequest) input() service.VerifyInput {
	return service.VerifyInput{GatewayOrderID: r.GatewayOrderID, PaymentID: r.PaymentID, Signature: r.Signature}
}

// Verify handles POST /orders/verify, the checkout callback.
func (h *OrderHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.VerifyCheckout(c.Request.Context(), middleware.GetUserID(c), req.input())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.orders.ListOrders(c.Request.Context(), middleware.GetUserID(c), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), middleware.GetUserID(c), c.Param("order_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	order, err := h.orders.CancelOrder(c.Request.Context(), middleware.GetUserID(c), c.Param("order_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RequestRefund handles POST /orders/:order_id/refund.
func (h *OrderHandler) RequestRefund(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required,max=512"`
	}
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.refunds.Request(c.Request.Context(), middleware.GetUserID(c), c.Param("order_id"), req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
