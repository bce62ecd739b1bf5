package repository

import (
	"fmt"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Posting is one balance movement plus the bookkeeping counters it touches.
// Deltas may be negative; the resulting counters must stay non-negative.
type Posting struct {
	TransactionID  string
	UserID         uint
	Type           string
	AmountCents    int64
	Description    string
	Reference      models.Reference
	IdempotencyKey string

	EarnedDelta    int64
	TopUpDelta     int64
	PendingDelta   int64
	WithdrawnDelta int64
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
// The read takes a row lock when the store supports it.
func (r *WalletRepository) GetOrCreate(userID uint, currency string) (*models.Wallet, error) {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Wallet{UserID: userID, Currency: currency}).Error
	if err != nil {
		return nil, err
	}
	var w models.Wallet
	err = r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) FindByIdempotencyKey(key string) (*models.WalletTransaction, error) {
	var t models.WalletTransaction
	if err := r.db.Where("idempotency_key = ?", key).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Apply performs p against the wallet with a version compare-and-set and
// appends the ledger entry. Call it inside a transaction. A posting whose
// idempotency key was already applied returns the original entry.
func (r *WalletRepository) Apply(p Posting, currency string) (*models.WalletTransaction, error) {
	if p.IdempotencyKey != "" {
		prev, err := r.FindByIdempotencyKey(p.IdempotencyKey)
		if err == nil {
			return prev, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	w, err := r.GetOrCreate(p.UserID, currency)
	if err != nil {
		return nil, err
	}

	balance := w.BalanceCents
	switch p.Type {
	case domain.TxTypeCredit:
		balance += p.AmountCents
	case domain.TxTypeDebit:
		if w.BalanceCents < p.AmountCents {
			return nil, ErrInsufficientBalance
		}
		balance -= p.AmountCents
	default:
		return nil, fmt.Errorf("%w: type %q", ErrInvalidPosting, p.Type)
	}
	next := *w
	next.BalanceCents = balance
	next.TotalEarnedCents += p.EarnedDelta
	next.TotalTopUpCents += p.TopUpDelta
	next.PendingWithdrawalsCents += p.PendingDelta
	next.TotalWithdrawnCents += p.WithdrawnDelta
	if next.TotalEarnedCents < 0 || next.TotalTopUpCents < 0 || next.PendingWithdrawalsCents < 0 || next.TotalWithdrawnCents < 0 {
		return nil, fmt.Errorf("%w: counters would go negative for wallet %d", ErrInvalidPosting, w.ID)
	}
	if err := r.compareAndSet(w, &next); err != nil {
		return nil, err
	}

	tx := &models.WalletTransaction{
		TransactionID:     p.TransactionID,
		UserID:            p.UserID,
		WalletID:          w.ID,
		Sequence:          next.Version,
		Type:              p.Type,
		AmountCents:       p.AmountCents,
		BalanceAfterCents: balance,
		Description:       p.Description,
		Reference:         p.Reference,
		Status:            domain.TxStatusCompleted,
	}
	if p.IdempotencyKey != "" {
		key := p.IdempotencyKey
		tx.IdempotencyKey = &key
	}
	if err := r.db.Create(tx).Error; err != nil {
		if IsDuplicate(err) {
			// a concurrent writer claimed the key or the sequence; retry from the top
			return nil, ErrVersionConflict
		}
		return nil, err
	}
	return tx, nil
}

// Adjust moves amounts between bookkeeping counters without touching the
// balance or writing a ledger entry.
func (r *WalletRepository) Adjust(userID uint, currency string, pendingDelta, withdrawnDelta int64) (*models.Wallet, error) {
	w, err := r.GetOrCreate(userID, currency)
	if err != nil {
		return nil, err
	}
	next := *w
	next.PendingWithdrawalsCents += pendingDelta
	next.TotalWithdrawnCents += withdrawnDelta
	if next.PendingWithdrawalsCents < 0 || next.TotalWithdrawnCents < 0 {
		return nil, fmt.Errorf("%w: counters would go negative for wallet %d", ErrInvalidPosting, w.ID)
	}
	if err := r.compareAndSet(w, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (r *WalletRepository) compareAndSet(cur, next *models.Wallet) error {
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	res := r.db.Model(&models.Wallet{}).
		Where("id = ? AND version = ?", cur.ID, cur.Version).
		Updates(map[string]interface{}{
			"balance_cents":             next.BalanceCents,
			"total_earned_cents":        next.TotalEarnedCents,
			"total_withdrawn_cents":     next.TotalWithdrawnCents,
			"pending_withdrawals_cents": next.PendingWithdrawalsCents,
			"total_topup_cents":         next.TotalTopUpCents,
			"version":                   next.Version,
			"updated_at":                next.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListTransactions returns the user's ledger entries, latest first, and the total count.
func (r *WalletRepository) ListTransactions(userID uint, limit, offset int) ([]models.WalletTransaction, int64, error) {
	var (
		list  []models.WalletTransaction
		total int64
	)
	q := r.db.Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("sequence DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// LastTransactionAt is the time of the newest ledger entry, or nil.
func (r *WalletRepository) LastTransactionAt(userID uint) (*time.Time, error) {
	var t models.WalletTransaction
	err := r.db.Where("user_id = ?", userID).Order("sequence DESC").Limit(1).Find(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t.CreatedAt, nil
}
