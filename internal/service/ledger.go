package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/models"
	"skillmint/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Ledger is the only writer of wallet balances. Every posting is the wallet
// compare-and-set plus the appended transaction, committed together.
type Ledger struct {
	db          *gorm.DB
	currency    string
	maxAttempts int
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
}

func NewLedger(db *gorm.DB, currency string, maxAttempts int, m *metrics.Metrics, log logrus.FieldLogger) *Ledger {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &Ledger{
		db:          db,
		currency:    currency,
		maxAttempts: maxAttempts,
		metrics:     m,
		log:         log.WithField("component", "ledger"),
	}
}

// PostOption customises a single posting.
type PostOption func(*repository.Posting)

// WithIdempotencyKey applies the posting at most once per key.
func WithIdempotencyKey(key string) PostOption {
	return func(p *repository.Posting) { p.IdempotencyKey = key }
}

// AsEarning counts a credit towards total earned, or a debit against it.
func AsEarning() PostOption {
	return func(p *repository.Posting) {
		if p.Type == domain.TxTypeDebit {
			p.EarnedDelta = -p.AmountCents
		} else {
			p.EarnedDelta = p.AmountCents
		}
	}
}

// AsTopUp counts a credit towards total top-ups.
func AsTopUp() PostOption {
	return func(p *repository.Posting) { p.TopUpDelta = p.AmountCents }
}

// WithPendingDelta moves the withdrawal-pending counter by delta.
func WithPendingDelta(delta int64) PostOption {
	return func(p *repository.Posting) { p.PendingDelta = delta }
}

// Atomically runs fn in one database transaction and retries the whole
// transaction when a wallet version check loses a race.
func (l *Ledger) Atomically(ctx context.Context, fn func(tx *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.maxAttempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := l.db.WithContext(ctx).Transaction(fn)
		if errors.Is(err, repository.ErrVersionConflict) {
			l.metrics.WalletConflicts.Inc()
			l.log.WithField("attempt", attempt).Debug("wallet version conflict, retrying")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if errors.Is(err, repository.ErrVersionConflict) {
		return domain.ErrWalletContention
	}
	return err
}

// Post applies a posting inside tx. Use it from an Atomically callback when
// the posting must commit together with another state change.
func (l *Ledger) Post(tx *gorm.DB, userID uint, txType string, amountCents int64, description string, ref models.Reference, opts ...PostOption) (*models.WalletTransaction, error) {
	if amountCents <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidInput, "amount must be positive")
	}
	if !domain.ValidReferenceKind(ref.Type) {
		return nil, domain.Errorf(domain.ErrInvalidInput, "unknown reference type %q", ref.Type)
	}
	p := repository.Posting{
		TransactionID: NewID(domain.PrefixTransaction),
		UserID:        userID,
		Type:          txType,
		AmountCents:   amountCents,
		Description:   description,
		Reference:     ref,
	}
	for _, o := range opts {
		o(&p)
	}
	t, err := repository.NewWalletRepository(tx).Apply(p, l.currency)
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		return nil, domain.ErrInsufficientFunds
	case errors.Is(err, repository.ErrInvalidPosting):
		return nil, domain.Errorf(domain.ErrInvalidInput, "%v", err)
	case err != nil:
		return nil, err
	}
	l.metrics.LedgerPostings.WithLabelValues(txType, ref.Type).Inc()
	return t, nil
}

func (l *Ledger) Credit(ctx context.Context, userID uint, amountCents int64, description string, ref models.Reference, opts ...PostOption) (*models.WalletTransaction, error) {
	return l.postAlone(ctx, userID, domain.TxTypeCredit, amountCents, description, ref, opts)
}

// Debit fails with INSUFFICIENT_FUNDS when the balance is below amountCents.
func (l *Ledger) Debit(ctx context.Context, userID uint, amountCents int64, description string, ref models.Reference, opts ...PostOption) (*models.WalletTransaction, error) {
	return l.postAlone(ctx, userID, domain.TxTypeDebit, amountCents, description, ref, opts)
}

func (l *Ledger) postAlone(ctx context.Context, userID uint, txType string, amountCents int64, description string, ref models.Reference, opts []PostOption) (*models.WalletTransaction, error) {
	var out *models.WalletTransaction
	err := l.Atomically(ctx, func(tx *gorm.DB) error {
		t, err := l.Post(tx, userID, txType, amountCents, description, ref, opts...)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"user_id":        userID,
		"type":           txType,
		"amount_cents":   amountCents,
		"reference_type": ref.Type,
		"reference_id":   ref.ID,
		"transaction_id": out.TransactionID,
	}).Info("wallet posting applied")
	return out, nil
}

func (l *Ledger) HasBalance(ctx context.Context, userID uint, amountCents int64) (bool, error) {
	w, err := repository.NewWalletRepository(l.db.WithContext(ctx)).GetByUserID(userID)
	if repository.IsNotFound(err) {
		return amountCents <= 0, nil
	}
	if err != nil {
		return false, err
	}
	return w.BalanceCents >= amountCents, nil
}

type Summary struct {
	BalanceCents            int64      `json:"balance_cents"`
	TotalEarnedCents        int64      `json:"total_earned_cents"`
	TotalWithdrawnCents     int64      `json:"total_withdrawn_cents"`
	PendingWithdrawalsCents int64      `json:"pending_withdrawals_cents"`
	TotalTopUpCents         int64      `json:"total_topup_cents"`
	Currency                string     `json:"currency"`
	LastTransactionAt       *time.Time `json:"last_transaction_at"`
}

// Summary reports the wallet; a user with no wallet yet gets zeroes.
func (l *Ledger) Summary(ctx context.Context, userID uint) (*Summary, error) {
	repo := repository.NewWalletRepository(l.db.WithContext(ctx))
	s := &Summary{Currency: l.currency}
	w, err := repo.GetByUserID(userID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		s.BalanceCents = w.BalanceCents
		s.TotalEarnedCents = w.TotalEarnedCents
		s.TotalWithdrawnCents = w.TotalWithdrawnCents
		s.PendingWithdrawalsCents = w.PendingWithdrawalsCents
		s.TotalTopUpCents = w.TotalTopUpCents
		s.Currency = w.Currency
	}
	if s.LastTransactionAt, err = repo.LastTransactionAt(userID); err != nil {
		return nil, err
	}
	return s, nil
}

func (l *Ledger) Transactions(ctx context.Context, userID uint, limit, offset int) ([]models.WalletTransaction, int64, error) {
	return repository.NewWalletRepository(l.db.WithContext(ctx)).ListTransactions(userID, limit, offset)
}

// Correct records an admin correction. Credits count as earnings; debits
// only reduce the balance.
func (l *Ledger) Correct(ctx context.Context, adminID, userID uint, txType string, amountCents int64, reason string) (*models.WalletTransaction, error) {
	if reason == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "correction reason is required")
	}
	var opts []PostOption
	switch txType {
	case domain.TxTypeCredit:
		opts = append(opts, AsEarning())
	case domain.TxTypeDebit:
	default:
		return nil, domain.Errorf(domain.ErrInvalidInput, "type must be credit or debit")
	}
	ref := models.Reference{Type: domain.RefCorrection, ID: fmt.Sprintf("admin:%d", adminID)}
	return l.postAlone(ctx, userID, txType, amountCents, "Correction: "+reason, ref, opts)
}
