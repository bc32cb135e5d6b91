package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/config"
	"github.com/spec-kit/listing-admin/internal/service"
)

// StartSweeper runs the expired-suspension sweep on the configured cadence
// until the context is cancelled.
func StartSweeper(ctx context.Context, suspensions *service.SuspensionService, cfg config.SweepConfig, logger *zap.Logger) {
	if !cfg.Enabled {
		logger.Info("suspension sweeper disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(cfg.Interval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				outcomes, err := suspensions.SweepExpired(ctx)
				if err != nil {
					logger.Error("sweep failed", zap.Error(err))
					continue
				}
				lifted, failed := 0, 0
				for _, outcome := range outcomes {
					if outcome.Status == "lifted" {
						lifted++
					} else {
						failed++
					}
				}
				if lifted+failed > 0 {
					logger.Info("sweep completed",
						zap.Int("lifted", lifted),
						zap.Int("failed", failed))
				}
			}
		}
	}()
}
