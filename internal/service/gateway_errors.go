package service

import (
	"context"
	"errors"

	"skillmint/internal/domain"
	"skillmint/pkg/payment"
)

// gatewayError maps adapter failures onto client-facing codes.
func gatewayError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payment.ErrSignatureMismatch):
		return domain.ErrSignatureMismatch
	case errors.Is(err, payment.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrGatewayTimeout
	default:
		return domain.Errorf(domain.ErrGatewayUnavailable, "payment gateway unavailable: %v", err)
	}
}
