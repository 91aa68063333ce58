package crontab

import (
	"context"
	"fmt"

	"github.com/mileusna/crontab"

	"dispatch-server/services/dispatch-api/internal/config"
	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
	"dispatch-server/services/dispatch-api/internal/infrastructure/logger"
	"dispatch-server/services/dispatch-api/internal/infrastructure/metrics"
	"dispatch-server/services/dispatch-api/internal/utils/platformerrors"
)

const (
	DefaultHealthExportInterval = 1 // in minutes
)

type Crontab struct {
	ctab     *crontab.Crontab
	invokers *invoker.Factory
}

func NewCrontab(invokers *invoker.Factory) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		invokers: invokers,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	// execute once on server start
	c.exportEndpointHealth()

	cfg := config.GetGlobal()
	if cfg != nil && cfg.HealthExportEnabled {
		interval := cfg.HealthExportIntervalMinutes
		if interval <= 0 {
			interval = DefaultHealthExportInterval
		}

		cronExpr := fmt.Sprintf("*/%d * * * *", interval)
		if err := c.ctab.AddJob(cronExpr, c.exportEndpointHealth); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add health export job")
		}
		log.Warn().Msgf("Endpoint health export scheduled: every %d minute(s)", interval)
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// exportEndpointHealth publishes the breaker view of every instantiated scope
// into the availability gauge and logs endpoints with open circuits.
func (c *Crontab) exportEndpointHealth() {
	log := logger.GetLogger()

	for scope, endpoints := range c.invokers.Snapshots() {
		for endpoint, status := range endpoints {
			available := 0.0
			if status.Available {
				available = 1.0
			}
			metrics.InvokerEndpointAvailable.WithLabelValues(scope, endpoint).Set(available)

			if !status.Available {
				event := log.Warn().
					Str("scope", scope).
					Str("endpoint", endpoint).
					Int("consecutive_failures", status.ConsecutiveFailures)
				if status.RecoveryDeadline != nil {
					event = event.Time("recovery_deadline", *status.RecoveryDeadline)
				}
				event.Msg("endpoint circuit open")
			}
		}
	}
}
