package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"skillmint/config"
	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/models"
	"skillmint/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PlannedCommission is one level of a referral payout before it is stored.
type PlannedCommission struct {
	Level       int     `json:"level"`
	AffiliateID uint    `json:"affiliate_id"`
	Percentage  float64 `json:"percentage"`
	AmountCents int64   `json:"amount_cents"`
}

// CommissionPlan is the ordered set of commissions for one sale.
type CommissionPlan []PlannedCommission

func (p CommissionPlan) Total() int64 {
	var sum int64
	for _, c := range p {
		sum += c.AmountCents
	}
	return sum
}

// encode renders the plan for the order row. An empty plan encodes as "[]" so
// it stays distinguishable from an order that never stored one.
func (p CommissionPlan) encode() string {
	if len(p) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodePlan(raw string) (CommissionPlan, error) {
	var p CommissionPlan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode commission plan: %w", err)
	}
	return p, nil
}

// truncate trims deepest levels first so the plan fits within limit.
func (p CommissionPlan) truncate(limit int64) CommissionPlan {
	out := append(CommissionPlan(nil), p...)
	excess := out.Total() - limit
	for i := len(out) - 1; i >= 0 && excess > 0; i-- {
		cut := out[i].AmountCents
		if cut > excess {
			cut = excess
		}
		out[i].AmountCents -= cut
		excess -= cut
	}
	kept := out[:0]
	for _, c := range out {
		if c.AmountCents > 0 {
			kept = append(kept, c)
		}
	}
	return kept
}

type CommissionService struct {
	db           *gorm.DB
	ledger       *Ledger
	defaults     map[int]float64
	refundWindow time.Duration
	metrics      *metrics.Metrics
	log          logrus.FieldLogger
}

func NewCommissionService(db *gorm.DB, ledger *Ledger, defaults map[int]float64, refundWindow time.Duration, m *metrics.Metrics, log logrus.FieldLogger) *CommissionService {
	return &CommissionService{
		db:           db,
		ledger:       ledger,
		defaults:     defaults,
		refundWindow: refundWindow,
		metrics:      m,
		log:          log.WithField("component", "commissions"),
	}
}

// Levels returns the active level percentages: the stored setting when
// present and valid, otherwise the configured defaults.
func (s *CommissionService) Levels(ctx context.Context) map[int]float64 {
	raw, err := repository.NewSettingRepository(s.db.WithContext(ctx)).Get(domain.SettingCommissionLevels)
	if err != nil || raw == "" {
		return s.defaults
	}
	levels, err := config.ParseCommissionLevels(raw)
	if err != nil {
		s.log.WithError(err).Warn("ignoring invalid commission_levels setting")
		return s.defaults
	}
	return levels
}

func (s *CommissionService) SetLevels(ctx context.Context, levels map[int]float64) error {
	if err := config.ValidateCommissionLevels(levels); err != nil {
		return domain.Errorf(domain.ErrInvalidInput, "%v", err)
	}
	byKey := make(map[string]float64, len(levels))
	for l, pct := range levels {
		byKey[strconv.Itoa(l)] = pct
	}
	raw, err := json.Marshal(byKey)
	if err != nil {
		return err
	}
	return repository.NewSettingRepository(s.db.WithContext(ctx)).Set(domain.SettingCommissionLevels, string(raw))
}

// Plan walks the referral chain once from the order's referrer, one level per
// hop, stopping at the first ineligible user.
func (s *CommissionService) Plan(ctx context.Context, order *models.Order, course *models.Course) (CommissionPlan, error) {
	if order.ReferralUsedID == nil || course.AffiliateCommissionPct <= 0 || order.FinalAmountCents <= 0 {
		return nil, nil
	}
	levels := s.Levels(ctx)
	users := repository.NewUserRepository(s.db.WithContext(ctx))
	visited := map[uint]bool{order.UserID: true}

	var plan CommissionPlan
	next := order.ReferralUsedID
	for level := 1; level <= domain.MaxCommissionLevel && next != nil; level++ {
		id := *next
		if visited[id] || id == course.InstructorID {
			break
		}
		visited[id] = true
		u, err := users.GetByID(id)
		if repository.IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !u.CanReferOthers() {
			break
		}
		if pct := levels[level]; pct > 0 {
			plan = append(plan, PlannedCommission{
				Level:       level,
				AffiliateID: u.ID,
				Percentage:  pct,
				AmountCents: percentOf(order.FinalAmountCents, pct),
			})
		}
		next = u.ReferredByID
	}
	return plan, nil
}

// ScheduleForOrder stores the plan as pending commissions. Re-running it for
// the same order creates nothing new.
func (s *CommissionService) ScheduleForOrder(ctx context.Context, order *models.Order, plan CommissionPlan) ([]models.AffiliateCommission, error) {
	repo := repository.NewCommissionRepository(s.db.WithContext(ctx))
	for _, p := range plan {
		c := &models.AffiliateCommission{
			CommissionID:          NewID(domain.PrefixCommission),
			AffiliateID:           p.AffiliateID,
			ReferredUserID:        order.UserID,
			OrderID:               order.OrderID,
			CourseID:              order.CourseID,
			Level:                 p.Level,
			CommissionAmountCents: p.AmountCents,
			CommissionPercentage:  p.Percentage,
			OrderAmountCents:      order.FinalAmountCents,
			Status:                domain.CommissionStatusPending,
		}
		created, err := repo.CreateOnce(c)
		if err != nil {
			return nil, fmt.Errorf("schedule level %d: %w", p.Level, err)
		}
		if created {
			s.metrics.CommissionEvents.WithLabelValues(domain.CommissionStatusPending).Inc()
		}
	}
	return repo.ListByOrder(order.OrderID)
}

func (s *CommissionService) get(ctx context.Context, commissionID string) (*models.AffiliateCommission, error) {
	c, err := repository.NewCommissionRepository(s.db.WithContext(ctx)).GetByCommissionID(commissionID)
	if repository.IsNotFound(err) {
		return nil, domain.Errorf(domain.ErrNotFound, "commission %s not found", commissionID)
	}
	return c, err
}

func (s *CommissionService) illegal(c *models.AffiliateCommission, to string) error {
	return domain.Errorf(domain.ErrIllegalStateTransition, "commission %s is %s, cannot move to %s", c.CommissionID, c.Status, to)
}

// Approve moves a pending commission to approved once its order is completed
// and past the refund window. override skips the window check.
func (s *CommissionService) Approve(ctx context.Context, commissionID, note string, override bool) (*models.AffiliateCommission, error) {
	c, err := s.get(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CommissionStatusPending {
		return nil, s.illegal(c, domain.CommissionStatusApproved)
	}
	order, err := repository.NewOrderRepository(s.db.WithContext(ctx)).GetByOrderID(c.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		return nil, domain.Errorf(domain.ErrIllegalStateTransition, "order %s is %s", order.OrderID, order.PaymentStatus)
	}
	if !override && time.Now().UTC().Sub(order.CreatedAt) <= s.refundWindow {
		return nil, domain.Errorf(domain.ErrIllegalStateTransition, "order %s is still inside its refund window", order.OrderID)
	}
	return s.transition(ctx, c, domain.CommissionStatusApproved, map[string]interface{}{
		"status": domain.CommissionStatusApproved,
		"note":   note,
	})
}

func (s *CommissionService) Reject(ctx context.Context, commissionID, note string) (*models.AffiliateCommission, error) {
	c, err := s.get(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CommissionStatusPending {
		return nil, s.illegal(c, domain.CommissionStatusRejected)
	}
	return s.transition(ctx, c, domain.CommissionStatusRejected, map[string]interface{}{
		"status": domain.CommissionStatusRejected,
		"note":   note,
	})
}

func (s *CommissionService) transition(ctx context.Context, c *models.AffiliateCommission, to string, updates map[string]interface{}) (*models.AffiliateCommission, error) {
	repo := repository.NewCommissionRepository(s.db.WithContext(ctx))
	ok, err := repo.Transition(c.CommissionID, c.Status, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.illegal(c, to)
	}
	s.metrics.CommissionEvents.WithLabelValues(to).Inc()
	s.log.WithFields(logrus.Fields{"commission_id": c.CommissionID, "status": to}).Info("commission transitioned")
	return repo.GetByCommissionID(c.CommissionID)
}

// Pay marks an approved commission paid and credits the affiliate's wallet in
// the same transaction.
func (s *CommissionService) Pay(ctx context.Context, commissionID, method, externalTxnID string) (*models.AffiliateCommission, error) {
	if method == "" {
		method = domain.WithdrawMethodWallet
	}
	switch method {
	case domain.WithdrawMethodWallet, domain.WithdrawMethodBank, domain.WithdrawMethodUPI, domain.WithdrawMethodPayPal:
	default:
		return nil, domain.Errorf(domain.ErrInvalidInput, "unknown payout method %q", method)
	}
	c, err := s.get(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CommissionStatusApproved {
		return nil, s.illegal(c, domain.CommissionStatusPaid)
	}
	now := time.Now().UTC()
	err = s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
		ok, err := repository.NewCommissionRepository(tx).Transition(c.CommissionID, domain.CommissionStatusApproved, map[string]interface{}{
			"status":          domain.CommissionStatusPaid,
			"payout_date":     now,
			"payout_method":   method,
			"external_txn_id": externalTxnID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return s.illegal(c, domain.CommissionStatusPaid)
		}
		_, err = s.ledger.Post(tx, c.AffiliateID, domain.TxTypeCredit, c.CommissionAmountCents,
			fmt.Sprintf("Level %d commission for order %s", c.Level, c.OrderID),
			models.Reference{Type: domain.RefCommission, ID: c.CommissionID},
			WithIdempotencyKey("commission:"+c.CommissionID+":pay"), AsEarning())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CommissionEvents.WithLabelValues(domain.CommissionStatusPaid).Inc()
	s.log.WithFields(logrus.Fields{
		"commission_id": c.CommissionID,
		"affiliate_id":  c.AffiliateID,
		"amount_cents":  c.CommissionAmountCents,
	}).Info("commission paid")
	return repository.NewCommissionRepository(s.db.WithContext(ctx)).GetByCommissionID(c.CommissionID)
}

// CancelForOrder cancels unpaid commissions on a refunded order. Paid ones
// stay paid and are flagged for admin review.
func (s *CommissionService) CancelForOrder(ctx context.Context, orderID string) error {
	cancelled, flagged, err := repository.NewCommissionRepository(s.db.WithContext(ctx)).CancelForOrder(orderID)
	if err != nil {
		return err
	}
	if cancelled > 0 {
		s.metrics.CommissionEvents.WithLabelValues(domain.CommissionStatusCancelled).Add(float64(cancelled))
	}
	if flagged > 0 {
		s.log.WithFields(logrus.Fields{"order_id": orderID, "commissions": flagged}).
			Warn("paid commissions on refunded order need review")
	}
	return nil
}

// List filters by affiliate when affiliateID is non-zero.
func (s *CommissionService) List(ctx context.Context, affiliateID uint, status string, limit, offset int) ([]models.AffiliateCommission, int64, error) {
	return repository.NewCommissionRepository(s.db.WithContext(ctx)).List(affiliateID, status, limit, offset)
}
