package handler

import (
	"io"
	"net/http"

	"skillmint/internal/domain"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
	maxWebhookBody  = 1 << 20
)

type PaymentWebhookHandler struct {
	orders *service.OrderService
	log    logrus.FieldLogger
}

func NewPaymentWebhookHandler(orders *service.OrderService, log logrus.FieldLogger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{orders: orders, log: log}
}

// Handle verifies the signature over the raw body before anything is parsed.
// Handled, duplicate and ignored events all answer 200 so the gateway stops retrying.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, h.log, domain.Errorf(domain.ErrInvalidInput, "invalid body"))
		return
	}
	outcome, err := h.orders.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader), c.GetHeader(eventIDHeader))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
