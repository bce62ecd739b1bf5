package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"skillmint/config"
	"skillmint/internal/app"
	"skillmint/internal/logging"
	"skillmint/internal/router"
	"skillmint/internal/service"

	"github.com/sirupsen/logrus"
)

const reconcileBatch = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New("skillmint-api", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup")
	}
	defer a.Close()

	engine := router.Setup(cfg, a.DB, a.Services, a.Metrics, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var wg sync.WaitGroup
	runJobs(ctx, &wg, a.Services, cfg, log)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	wg.Wait()
	log.Info("server stopped")
}

// runJobs starts the pending-order sweeper and the finalization reconciler.
func runJobs(ctx context.Context, wg *sync.WaitGroup, svc *service.Services, cfg *config.Config, log logrus.FieldLogger) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		service.Every(ctx, cfg.Jobs.SweepInterval, func(ctx context.Context) {
			if _, _, err := svc.Sweeper.SweepExpired(ctx, time.Now().UTC()); err != nil {
				log.WithError(err).Error("sweep failed")
			}
		})
	}()
	go func() {
		defer wg.Done()
		service.Every(ctx, cfg.Jobs.ReconcileInterval, func(ctx context.Context) {
			if _, err := svc.Reconciler.Run(ctx, reconcileBatch); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("reconcile failed")
			}
		})
	}()
}
