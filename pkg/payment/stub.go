package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// StubGateway is an in-process gateway for development and tests. It signs with
// the same HMAC scheme as the real processor, so callers can produce valid
// signatures with SignCheckout and SignWebhook.
type StubGateway struct {
	Secret        string
	WebhookSecret string

	// FailCreate, when set, is returned by CreateOrder.
	FailCreate error

	seq      atomic.Int64
	mu       sync.Mutex
	payments map[string]*PaymentInfo
	refunds  []RefundInfo
}

func NewStubGateway(secret, webhookSecret string) *StubGateway {
	return &StubGateway{Secret: secret, WebhookSecret: webhookSecret, payments: map[string]*PaymentInfo{}}
}

func (s *StubGateway) KeyID() string { return "rzp_test_stub" }

func (s *StubGateway) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string) (*GatewayOrder, error) {
	if s.FailCreate != nil {
		return nil, s.FailCreate
	}
	return &GatewayOrder{
		ID:          fmt.Sprintf("order_stub%06d", s.seq.Add(1)),
		AmountCents: amountCents,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}, nil
}

func (s *StubGateway) VerifyCheckoutSignature(gatewayOrderID, paymentID, signature string) error {
	return verifyCheckout(s.Secret, gatewayOrderID, paymentID, signature)
}

func (s *StubGateway) VerifyWebhookSignature(rawBody []byte, signature string) error {
	return verifyWebhook(s.WebhookSecret, rawBody, signature)
}

// SetPayment registers what FetchPayment returns for p.ID.
func (s *StubGateway) SetPayment(p PaymentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = &p
}

func (s *StubGateway) FetchPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", ErrUnavailable, paymentID)
	}
	cp := *p
	return &cp, nil
}

func (s *StubGateway) Refund(ctx context.Context, paymentID string, amountCents int64) (*RefundInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := RefundInfo{
		ID:          fmt.Sprintf("rfnd_stub%06d", s.seq.Add(1)),
		PaymentID:   paymentID,
		AmountCents: amountCents,
		Status:      "processed",
	}
	s.refunds = append(s.refunds, r)
	return &r, nil
}

// Refunds lists refunds initiated through the stub.
func (s *StubGateway) Refunds() []RefundInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RefundInfo(nil), s.refunds...)
}
