package service

import (
	"context"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sweeper fails pending orders and top-ups that outlived the TTL.
type Sweeper struct {
	db  *gorm.DB
	ttl time.Duration
	log logrus.FieldLogger
}

func NewSweeper(db *gorm.DB, ttl time.Duration, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{db: db, ttl: ttl, log: log.WithField("component", "sweeper")}
}

// SweepExpired returns how many orders and top-ups were failed.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) (orders, topups int64, err error) {
	cutoff := now.Add(-s.ttl)
	db := s.db.WithContext(ctx)
	if orders, err = repository.NewOrderRepository(db).ExpirePending(cutoff); err != nil {
		return 0, 0, err
	}
	if orders > 0 {
		if _, err = repository.NewCouponRepository(db).ReleaseForStatus(domain.PaymentStatusFailed); err != nil {
			return orders, 0, err
		}
	}
	if topups, err = repository.NewTopUpRepository(db).ExpirePending(cutoff); err != nil {
		return orders, 0, err
	}
	if orders > 0 || topups > 0 {
		s.log.WithFields(logrus.Fields{"orders": orders, "topups": topups}).Info("expired pending payments")
	}
	return orders, topups, nil
}

// Reconciler re-drives finalization for orders whose downstream effects failed.
type Reconciler struct {
	db      *gorm.DB
	orders  *OrderService
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewReconciler(db *gorm.DB, orders *OrderService, m *metrics.Metrics, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{db: db, orders: orders, metrics: m, log: log.WithField("component", "reconciler")}
}

// Run processes up to batch pending tasks and returns how many were resolved.
func (r *Reconciler) Run(ctx context.Context, batch int) (int, error) {
	repo := repository.NewReconcileRepository(r.db.WithContext(ctx))
	tasks, err := repo.ListPending(domain.ReconcileKindOrderFinalize, batch)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		log := r.log.WithFields(logrus.Fields{"order_id": t.ReferenceID, "attempts": t.Attempts})
		if err := r.orders.Refinalize(ctx, t.ReferenceID); err != nil {
			log.WithError(err).Warn("reconcile attempt failed")
			r.metrics.ReconcileTasks.WithLabelValues("failed").Inc()
			if rerr := repo.Record(t.Kind, t.ReferenceID, err.Error()); rerr != nil {
				return resolved, rerr
			}
			continue
		}
		if err := repo.MarkDone(t.Kind, t.ReferenceID); err != nil {
			return resolved, err
		}
		r.metrics.ReconcileTasks.WithLabelValues("resolved").Inc()
		log.Info("order reconciled")
		resolved++
	}
	return resolved, nil
}

// Every runs fn on each tick of interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
