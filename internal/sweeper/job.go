package sweeper

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/utils/webhook"
)

const JobName = "escrow_sweeper"

// NewJob wraps a sweep pass with job monitoring and pings the uptime webhook
// after every pass that could list all of its candidates. A pass that finds
// another one still running is recorded as skipped.
func NewJob(
	s ISweeper,
	statusManager *monitoring.JobStatusManager,
	logger *logger.Logger,
	appConfig *config.AppConfig,
) *monitoring.InstrumentedJob {
	timeout := appConfig.Sweeper.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	run := func(ctx context.Context) (map[string]interface{}, error) {
		report, err := s.Sweep(ctx)
		if errors.Is(err, ErrSweepInProgress) {
			return nil, monitoring.ErrJobSkipped
		}
		if report == nil {
			return nil, err
		}
		return map[string]interface{}{
			"finalized_orders":  report.FinalizedOrders.Processed,
			"verified_swaps":    report.VerifiedSwaps.Processed,
			"expired_orders":    report.ExpiredOrders.Processed,
			"timed_out_swaps":   report.TimedOutSwaps.Processed,
			"advanced_disputes": report.AdvancedDisputes.Processed,
			"failed":            report.Failed(),
		}, err
	}

	return monitoring.NewInstrumentedJob(JobName, run, statusManager, logger, timeout).
		WithUptimeWebhook(webhook.New(logger), appConfig.UptimeWebhooks.SweeperURL)
}
