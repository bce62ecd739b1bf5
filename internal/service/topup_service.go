package service

import (
	"context"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/pkg/payment"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TopUpService adds money to a wallet through a gateway payment.
type TopUpService struct {
	db       *gorm.DB
	ledger   *Ledger
	gateway  payment.Gateway
	currency string
	log      logrus.FieldLogger
}

func NewTopUpService(db *gorm.DB, ledger *Ledger, gw payment.Gateway, currency string, log logrus.FieldLogger) *TopUpService {
	return &TopUpService{db: db, ledger: ledger, gateway: gw, currency: currency, log: log.WithField("component", "topups")}
}

type TopUpCheckout struct {
	TopUpID        string `json:"topup_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	Key            string `json:"key"`
}

func (s *TopUpService) Create(ctx context.Context, userID uint, amountCents int64) (*TopUpCheckout, error) {
	if amountCents <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidInput, "top-up amount must be positive")
	}
	id := NewID(domain.PrefixTopUp)
	gwOrder, err := s.gateway.CreateOrder(ctx, amountCents, s.currency, id)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("gateway order for top-up failed")
		return nil, gatewayError(err)
	}
	t := &models.TopUp{
		TopUpID:        id,
		UserID:         userID,
		AmountCents:    amountCents,
		Currency:       s.currency,
		GatewayOrderID: gwOrder.ID,
		Status:         domain.TopUpStatusPending,
	}
	if err := repository.NewTopUpRepository(s.db.WithContext(ctx)).Create(t); err != nil {
		return nil, err
	}
	return &TopUpCheckout{
		TopUpID:        id,
		GatewayOrderID: gwOrder.ID,
		AmountCents:    amountCents,
		Currency:       s.currency,
		Key:            s.gateway.KeyID(),
	}, nil
}

// Verify confirms a top-up from the checkout callback and credits the wallet once.
func (s *TopUpService) Verify(ctx context.Context, userID uint, in VerifyInput) (*models.TopUp, error) {
	repo := repository.NewTopUpRepository(s.db.WithContext(ctx))
	t, err := repo.GetByGatewayOrderID(in.GatewayOrderID)
	if repository.IsNotFound(err) {
		return nil, domain.Errorf(domain.ErrNotFound, "top-up not found")
	}
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if err := s.gateway.VerifyCheckoutSignature(in.GatewayOrderID, in.PaymentID, in.Signature); err != nil {
		return nil, gatewayError(err)
	}
	if _, err := s.complete(ctx, t, in.PaymentID); err != nil {
		return nil, err
	}
	return repo.GetByGatewayOrderID(in.GatewayOrderID)
}

// complete moves the top-up to completed and credits the wallet in one
// transaction. It reports whether this call did the work.
func (s *TopUpService) complete(ctx context.Context, t *models.TopUp, paymentID string) (bool, error) {
	switch t.Status {
	case domain.TopUpStatusCompleted:
		return false, nil
	case domain.TopUpStatusPending:
	default:
		return false, domain.Errorf(domain.ErrOrderAlreadyFinalized, "top-up %s is %s", t.TopUpID, t.Status)
	}
	won := false
	err := s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		ok, err := repository.NewTopUpRepository(tx).Transition(t.TopUpID, domain.TopUpStatusPending, map[string]interface{}{
			"status":             domain.TopUpStatusCompleted,
			"gateway_payment_id": paymentID,
			"completed_at":       now,
		})
		if err != nil || !ok {
			won = false
			return err
		}
		won = true
		_, err = s.ledger.Post(tx, t.UserID, domain.TxTypeCredit, t.AmountCents, "Wallet top-up",
			models.Reference{Type: domain.RefTopUp, ID: t.TopUpID},
			WithIdempotencyKey("topup:"+t.TopUpID), AsTopUp())
		return err
	})
	if err != nil {
		return false, err
	}
	if won {
		s.log.WithFields(logrus.Fields{"topup_id": t.TopUpID, "user_id": t.UserID, "amount_cents": t.AmountCents}).Info("wallet topped up")
	}
	return won, nil
}

// handleCaptured completes the top-up behind gatewayOrderID, if there is one.
func (s *TopUpService) handleCaptured(ctx context.Context, gatewayOrderID, paymentID string) (found, applied bool, err error) {
	t, err := repository.NewTopUpRepository(s.db.WithContext(ctx)).GetByGatewayOrderID(gatewayOrderID)
	if repository.IsNotFound(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	applied, err = s.complete(ctx, t, paymentID)
	return true, applied, err
}

func (s *TopUpService) handleFailed(ctx context.Context, gatewayOrderID string) (found, applied bool, err error) {
	repo := repository.NewTopUpRepository(s.db.WithContext(ctx))
	t, err := repo.GetByGatewayOrderID(gatewayOrderID)
	if repository.IsNotFound(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	applied, err = repo.Transition(t.TopUpID, domain.TopUpStatusPending, map[string]interface{}{"status": domain.TopUpStatusFailed})
	return true, applied, err
}
