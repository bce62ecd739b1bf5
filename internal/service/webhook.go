package service

import (
	"context"
	"encoding/json"
	"errors"

	"skillmint/internal/domain"
	"skillmint/internal/repository"
	"skillmint/pkg/payment"

	"github.com/sirupsen/logrus"
)

// Webhook outcomes, also used as the metrics label.
const (
	WebhookApplied   = "applied"
	WebhookNoop      = "noop"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity payment.PaymentInfo `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity payment.RefundInfo `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhook verifies and applies a gateway event. Replays are
// acknowledged without repeating any effect.
func (s *OrderService) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (string, error) {
	if err := s.gateway.VerifyWebhookSignature(rawBody, signature); err != nil {
		s.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return "", gatewayError(err)
	}
	var evt webhookEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return "", domain.Errorf(domain.ErrInvalidInput, "malformed webhook payload")
	}
	log := s.log.WithFields(logrus.Fields{"event": evt.Event, "event_id": eventID})

	if eventID != "" {
		first, err := s.dedup.Claim(ctx, eventID)
		if err != nil {
			log.WithError(err).Warn("webhook dedup cache unavailable")
		} else if !first {
			s.metrics.WebhookEvents.WithLabelValues(evt.Event, WebhookDuplicate).Inc()
			return WebhookDuplicate, nil
		}
	}

	outcome, err := s.applyEvent(ctx, &evt)
	if err != nil {
		if eventID != "" {
			_ = s.dedup.Release(ctx, eventID)
		}
		log.WithError(err).Error("webhook processing failed")
		return "", err
	}
	s.metrics.WebhookEvents.WithLabelValues(evt.Event, outcome).Inc()
	log.WithField("outcome", outcome).Info("webhook handled")
	return outcome, nil
}

func (s *OrderService) applyEvent(ctx context.Context, evt *webhookEvent) (string, error) {
	p := evt.Payload.Payment.Entity
	switch evt.Event {
	case domain.EventPaymentCaptured:
		return s.onCaptured(ctx, p)
	case domain.EventPaymentFailed:
		return s.onFailed(ctx, p)
	case domain.EventRefundProcessed:
		return s.onRefunded(ctx, evt.Payload.Refund.Entity, p)
	default:
		return WebhookIgnored, nil
	}
}

func outcomeOf(applied bool) string {
	if applied {
		return WebhookApplied
	}
	return WebhookNoop
}

func (s *OrderService) onCaptured(ctx context.Context, p payment.PaymentInfo) (string, error) {
	if p.OrderID == "" {
		return WebhookIgnored, nil
	}
	order, err := repository.NewOrderRepository(s.db.WithContext(ctx)).GetByGatewayOrderID(p.OrderID)
	if repository.IsNotFound(err) {
		found, applied, err := s.topups.handleCaptured(ctx, p.OrderID, p.ID)
		if errors.Is(err, domain.ErrOrderAlreadyFinalized) {
			return WebhookNoop, nil
		}
		if err != nil {
			return "", err
		}
		if !found {
			return WebhookIgnored, nil
		}
		return outcomeOf(applied), nil
	}
	if err != nil {
		return "", err
	}
	_, won, err := s.completeCaptured(ctx, order, p.ID, "")
	if errors.Is(err, domain.ErrOrderAlreadyFinalized) {
		return WebhookNoop, nil
	}
	if err != nil {
		return "", err
	}
	return outcomeOf(won), nil
}

func (s *OrderService) onFailed(ctx context.Context, p payment.PaymentInfo) (string, error) {
	if p.OrderID == "" {
		return WebhookIgnored, nil
	}
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	order, err := orders.GetByGatewayOrderID(p.OrderID)
	if repository.IsNotFound(err) {
		found, applied, err := s.topups.handleFailed(ctx, p.OrderID)
		if err != nil {
			return "", err
		}
		if !found {
			return WebhookIgnored, nil
		}
		return outcomeOf(applied), nil
	}
	if err != nil {
		return "", err
	}
	applied, err := orders.Transition(order.OrderID, domain.PaymentStatusPending, map[string]interface{}{
		"payment_status":     domain.PaymentStatusFailed,
		"order_status":       domain.OrderStatusCancelled,
		"gateway_payment_id": p.ID,
	})
	if err != nil {
		return "", err
	}
	if applied {
		s.releaseCoupon(ctx, order)
	}
	return outcomeOf(applied), nil
}

func (s *OrderService) onRefunded(ctx context.Context, r payment.RefundInfo, p payment.PaymentInfo) (string, error) {
	paymentID := r.PaymentID
	if paymentID == "" {
		paymentID = p.ID
	}
	if paymentID == "" {
		return WebhookIgnored, nil
	}
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	order, err := orders.GetByGatewayPaymentID(paymentID)
	if repository.IsNotFound(err) {
		return WebhookIgnored, nil
	}
	if err != nil {
		return "", err
	}
	if r.ID != "" && order.GatewayRefundID == "" {
		if err := orders.SetFields(order.OrderID, map[string]interface{}{"gateway_refund_id": r.ID}); err != nil {
			return "", err
		}
	}
	applied, err := s.refunds.apply(ctx, order, "refunded at gateway", false)
	if err != nil {
		return "", err
	}
	return outcomeOf(applied), nil
}
