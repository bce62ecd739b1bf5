package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a client-facing failure with a stable code.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same code, so refined errors still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code string, status int, msg string) *Error {
	return &Error{Code: code, Message: msg, Status: status}
}

var (
	ErrInvalidInput = newError("INVALID_INPUT", http.StatusBadRequest, "invalid input")
	ErrNotFound     = newError("NOT_FOUND", http.StatusNotFound, "not found")

	ErrUnauthenticated = newError("UNAUTHENTICATED", http.StatusUnauthorized, "authentication required")
	ErrForbidden       = newError("FORBIDDEN", http.StatusForbidden, "forbidden")

	ErrInsufficientFunds      = newError("INSUFFICIENT_FUNDS", http.StatusUnprocessableEntity, "insufficient wallet balance")
	ErrSelfReferral           = newError("SELF_REFERRAL_REJECTED", http.StatusUnprocessableEntity, "you cannot use your own referral code")
	ErrAlreadyEnrolled        = newError("ALREADY_ENROLLED", http.StatusConflict, "already enrolled in this course")
	ErrCouponInvalid          = newError("COUPON_INVALID", http.StatusUnprocessableEntity, "coupon is not valid")
	ErrOrderNotRefundable     = newError("ORDER_NOT_REFUNDABLE", http.StatusUnprocessableEntity, "order cannot be refunded")
	ErrWithdrawalInFlight     = newError("WITHDRAWAL_IN_FLIGHT", http.StatusConflict, "another withdrawal is already in progress")
	ErrIllegalStateTransition = newError("ILLEGAL_STATE_TRANSITION", http.StatusConflict, "illegal state transition")

	ErrGatewayUnavailable = newError("GATEWAY_UNAVAILABLE", http.StatusBadGateway, "payment gateway unavailable")
	ErrGatewayTimeout     = newError("GATEWAY_TIMEOUT", http.StatusGatewayTimeout, "payment gateway timed out")
	ErrSignatureMismatch  = newError("SIGNATURE_MISMATCH", http.StatusBadRequest, "payment signature mismatch")

	ErrWalletContention      = newError("WALLET_CONTENTION", http.StatusServiceUnavailable, "wallet is busy, retry")
	ErrOrderAlreadyFinalized = newError("ORDER_ALREADY_FINALIZED", http.StatusConflict, "order already finalized")

	ErrStoreUnavailable = newError("STORE_UNAVAILABLE", http.StatusInternalServerError, "storage unavailable")
)

// Errorf returns a copy of base carrying a more specific message.
func Errorf(base *Error, format string, args ...any) *Error {
	return &Error{Code: base.Code, Status: base.Status, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts the *Error in err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
