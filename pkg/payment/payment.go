// Package payment is the narrow adapter to the external payment processor.
package payment

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable covers network failures and non-2xx processor responses.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrTimeout is returned when a gateway call exceeds its deadline.
	ErrTimeout = errors.New("payment gateway timeout")
	// ErrSignatureMismatch is returned when a checkout or webhook signature does not verify.
	ErrSignatureMismatch = errors.New("payment signature mismatch")
)

// GatewayOrder is the processor-side order created before checkout.
type GatewayOrder struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// PaymentInfo is the processor's view of a payment, used for reconciliation.
type PaymentInfo struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Captured    bool   `json:"captured"`
}

// RefundInfo is the processor's acknowledgement of a refund.
type RefundInfo struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount"`
	Status      string `json:"status"`
}

// Gateway is implemented by HTTPGateway and StubGateway. All calls are safe to retry.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountCents int64, currency, receipt string) (*GatewayOrder, error)
	VerifyCheckoutSignature(gatewayOrderID, paymentID, signature string) error
	VerifyWebhookSignature(rawBody []byte, signature string) error
	FetchPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
	Refund(ctx context.Context, paymentID string, amountCents int64) (*RefundInfo, error)
}
