package service

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"skillmint/config"
	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/models"
	"skillmint/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	accountNumberPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
	ifscPattern          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	upiPattern           = regexp.MustCompile(`^[A-Za-z0-9._-]{2,256}@[A-Za-z]{2,64}$`)
)

// ValidatePaymentDetails checks the payout destination for the method.
func ValidatePaymentDetails(method string, d models.PaymentDetails) error {
	switch method {
	case domain.WithdrawMethodBank:
		if !accountNumberPattern.MatchString(d.AccountNumber) {
			return domain.Errorf(domain.ErrInvalidInput, "account number must be 9-18 digits")
		}
		if !ifscPattern.MatchString(d.IFSC) {
			return domain.Errorf(domain.ErrInvalidInput, "invalid IFSC code")
		}
		if strings.TrimSpace(d.AccountHolder) == "" {
			return domain.Errorf(domain.ErrInvalidInput, "account holder name is required")
		}
	case domain.WithdrawMethodUPI:
		if !upiPattern.MatchString(d.UPIID) {
			return domain.Errorf(domain.ErrInvalidInput, "invalid UPI id")
		}
	case domain.WithdrawMethodPayPal:
		addr, err := mail.ParseAddress(d.PayPalEmail)
		if err != nil || addr.Address != d.PayPalEmail {
			return domain.Errorf(domain.ErrInvalidInput, "invalid PayPal email")
		}
	case domain.WithdrawMethodWallet:
	default:
		return domain.Errorf(domain.ErrInvalidInput, "unknown payment method %q", method)
	}
	return nil
}

type WithdrawalService struct {
	db      *gorm.DB
	ledger  *Ledger
	cfg     config.WithdrawalConfig
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewWithdrawalService(db *gorm.DB, ledger *Ledger, cfg config.WithdrawalConfig, m *metrics.Metrics, log logrus.FieldLogger) *WithdrawalService {
	return &WithdrawalService{db: db, ledger: ledger, cfg: cfg, metrics: m, log: log.WithField("component", "withdrawals")}
}

// Fee is max(feePct% of amount, minimum fee), rounded half-up.
func (s *WithdrawalService) Fee(amountCents int64) int64 {
	fee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(s.cfg.FeePct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	if fee < s.cfg.MinFeeCents {
		fee = s.cfg.MinFeeCents
	}
	return fee
}

type CreateWithdrawalInput struct {
	UserID         uint
	AmountCents    int64
	PaymentMethod  string
	PaymentDetails models.PaymentDetails
}

func (s *WithdrawalService) Create(ctx context.Context, in CreateWithdrawalInput) (*models.WithdrawRequest, error) {
	if in.AmountCents < s.cfg.MinCents || in.AmountCents > s.cfg.MaxCents {
		return nil, domain.Errorf(domain.ErrInvalidInput, "withdrawal amount must be between %d and %d", s.cfg.MinCents, s.cfg.MaxCents)
	}
	if err := ValidatePaymentDetails(in.PaymentMethod, in.PaymentDetails); err != nil {
		return nil, err
	}
	fee := s.Fee(in.AmountCents)
	if fee >= in.AmountCents {
		return nil, domain.Errorf(domain.ErrInvalidInput, "amount does not cover the processing fee")
	}
	req := &models.WithdrawRequest{
		RequestID:          NewID(domain.PrefixWithdrawal),
		UserID:             in.UserID,
		AmountCents:        in.AmountCents,
		ProcessingFeeCents: fee,
		NetAmountCents:     in.AmountCents - fee,
		PaymentMethod:      in.PaymentMethod,
		PaymentDetails:     in.PaymentDetails,
		Status:             domain.WithdrawStatusPending,
	}
	// the locked wallet read serializes concurrent creates for one user
	err := s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
		req.ID = 0
		w, err := repository.NewWalletRepository(tx).GetOrCreate(in.UserID, s.ledger.currency)
		if err != nil {
			return err
		}
		repo := repository.NewWithdrawalRepository(tx)
		busy, err := repo.HasInFlight(in.UserID)
		if err != nil {
			return err
		}
		if busy {
			return domain.ErrWithdrawalInFlight
		}
		if w.BalanceCents < in.AmountCents {
			return domain.ErrInsufficientFunds
		}
		return repo.Create(req)
	})
	if err != nil {
		return nil, err
	}
	s.event(req, domain.WithdrawStatusPending).Info("withdrawal requested")
	return req, nil
}

func (s *WithdrawalService) event(w *models.WithdrawRequest, status string) logrus.FieldLogger {
	s.metrics.WithdrawalEvents.WithLabelValues(status).Inc()
	return s.log.WithFields(logrus.Fields{
		"request_id":   w.RequestID,
		"user_id":      w.UserID,
		"amount_cents": w.AmountCents,
		"status":       status,
	})
}

func (s *WithdrawalService) get(ctx context.Context, requestID string) (*models.WithdrawRequest, error) {
	w, err := repository.NewWithdrawalRepository(s.db.WithContext(ctx)).GetByRequestID(requestID)
	if repository.IsNotFound(err) {
		return nil, domain.Errorf(domain.ErrNotFound, "withdrawal %s not found", requestID)
	}
	return w, err
}

func illegalWithdrawal(w *models.WithdrawRequest, to string) error {
	return domain.Errorf(domain.ErrIllegalStateTransition, "withdrawal %s is %s, cannot move to %s", w.RequestID, w.Status, to)
}

// Cancel withdraws the user's own pending request. No money has moved yet.
func (s *WithdrawalService) Cancel(ctx context.Context, userID uint, requestID string) (*models.WithdrawRequest, error) {
	w, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, domain.Errorf(domain.ErrNotFound, "withdrawal %s not found", requestID)
	}
	repo := repository.NewWithdrawalRepository(s.db.WithContext(ctx))
	ok, err := repo.Transition(requestID, domain.WithdrawStatusPending, map[string]interface{}{"status": domain.WithdrawStatusCancelled})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, illegalWithdrawal(w, domain.WithdrawStatusCancelled)
	}
	s.event(w, domain.WithdrawStatusCancelled).Info("withdrawal cancelled")
	return repo.GetByRequestID(requestID)
}

// Approve debits the wallet and moves the request straight to processing.
func (s *WithdrawalService) Approve(ctx context.Context, adminID uint, requestID string) (*models.WithdrawRequest, error) {
	w, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawStatusPending {
		return nil, illegalWithdrawal(w, domain.WithdrawStatusProcessing)
	}
	now := time.Now().UTC()
	err = s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
		ok, err := repository.NewWithdrawalRepository(tx).Transition(requestID, domain.WithdrawStatusPending, map[string]interface{}{
			"status":      domain.WithdrawStatusProcessing,
			"approved_by": adminID,
			"approved_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return illegalWithdrawal(w, domain.WithdrawStatusProcessing)
		}
		_, err = s.ledger.Post(tx, w.UserID, domain.TxTypeDebit, w.AmountCents,
			"Withdrawal "+w.RequestID,
			models.Reference{Type: domain.RefWithdrawal, ID: w.RequestID},
			WithIdempotencyKey("withdrawal:"+w.RequestID+":debit"), WithPendingDelta(w.AmountCents))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.event(w, domain.WithdrawStatusProcessing).WithField("admin_id", adminID).Info("withdrawal approved")
	return repository.NewWithdrawalRepository(s.db.WithContext(ctx)).GetByRequestID(requestID)
}

// Complete records the payout. The debit happened on approval, so only the
// pending amount moves to withdrawn.
func (s *WithdrawalService) Complete(ctx context.Context, adminID uint, requestID, transactionID string) (*models.WithdrawRequest, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "external transaction id is required")
	}
	w, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawStatusProcessing {
		return nil, illegalWithdrawal(w, domain.WithdrawStatusCompleted)
	}
	now := time.Now().UTC()
	err = s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
		ok, err := repository.NewWithdrawalRepository(tx).Transition(requestID, domain.WithdrawStatusProcessing, map[string]interface{}{
			"status":         domain.WithdrawStatusCompleted,
			"processed_at":   now,
			"transaction_id": transactionID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return illegalWithdrawal(w, domain.WithdrawStatusCompleted)
		}
		_, err = repository.NewWalletRepository(tx).Adjust(w.UserID, s.ledger.currency, -w.AmountCents, w.AmountCents)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.event(w, domain.WithdrawStatusCompleted).WithFields(logrus.Fields{"admin_id": adminID, "transaction_id": transactionID}).Info("withdrawal completed")
	return repository.NewWithdrawalRepository(s.db.WithContext(ctx)).GetByRequestID(requestID)
}

// Reject closes a pending or processing request. A processing request has
// been debited, so the amount is credited back.
func (s *WithdrawalService) Reject(ctx context.Context, adminID uint, requestID, reason string) (*models.WithdrawRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "rejection reason is required")
	}
	w, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"status":         domain.WithdrawStatusRejected,
		"failure_reason": truncate(reason, 512),
		"processed_at":   time.Now().UTC(),
	}
	switch w.Status {
	case domain.WithdrawStatusPending:
		ok, err := repository.NewWithdrawalRepository(s.db.WithContext(ctx)).Transition(requestID, domain.WithdrawStatusPending, updates)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, illegalWithdrawal(w, domain.WithdrawStatusRejected)
		}
	case domain.WithdrawStatusProcessing:
		err = s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
			ok, err := repository.NewWithdrawalRepository(tx).Transition(requestID, domain.WithdrawStatusProcessing, updates)
			if err != nil {
				return err
			}
			if !ok {
				return illegalWithdrawal(w, domain.WithdrawStatusRejected)
			}
			_, err = s.ledger.Post(tx, w.UserID, domain.TxTypeCredit, w.AmountCents,
				"Withdrawal "+w.RequestID+" rejected",
				models.Reference{Type: domain.RefWithdrawal, ID: w.RequestID},
				WithIdempotencyKey("withdrawal:"+w.RequestID+":refund"), WithPendingDelta(-w.AmountCents))
			return err
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, illegalWithdrawal(w, domain.WithdrawStatusRejected)
	}
	s.event(w, domain.WithdrawStatusRejected).WithFields(logrus.Fields{"admin_id": adminID, "reason": reason}).Info("withdrawal rejected")
	return repository.NewWithdrawalRepository(s.db.WithContext(ctx)).GetByRequestID(requestID)
}

// List filters by user when userID is non-zero.
func (s *WithdrawalService) List(ctx context.Context, userID uint, status string, limit, offset int) ([]models.WithdrawRequest, int64, error) {
	return repository.NewWithdrawalRepository(s.db.WithContext(ctx)).List(userID, status, limit, offset)
}
