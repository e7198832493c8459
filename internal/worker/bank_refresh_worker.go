package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BankRefresher reloads the question bank from its sources.
type BankRefresher interface {
	Refresh(ctx context.Context) error
}

// BankRefreshWorker reloads the bank on a fixed interval so draws rarely pay
// for a cold upstream fetch and the shared Redis copy stays warm.
type BankRefreshWorker struct {
	bank     BankRefresher
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

func NewBankRefreshWorker(bank BankRefresher, interval, timeout time.Duration, log zerolog.Logger) *BankRefreshWorker {
	return &BankRefreshWorker{
		bank:     bank,
		interval: interval,
		timeout:  timeout,
		log:      log.With().Str("component", "bank_refresh_worker").Logger(),
	}
}

// Start blocks until ctx is cancelled. A non-positive interval disables it.
func (w *BankRefreshWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("BankRefreshWorker disabled")
		return
	}
	w.log.Info().Dur("interval", w.interval).Msg("BankRefreshWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("BankRefreshWorker stopped")
			return
		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				failures++
				w.log.Warn().Err(err).Int("consecutive_failures", failures).Msg("Bank refresh failed")
				continue
			}
			if failures > 0 {
				w.log.Info().Int("after_failures", failures).Msg("Bank refresh recovered")
			}
			failures = 0
		}
	}
}

func (w *BankRefreshWorker) refresh(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.bank.Refresh(ctx)
}
