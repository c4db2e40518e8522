package chase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler sweeps for overdue invoices on a fixed interval and hands each
// one to the executor. Sweeps never overlap; a slow batch simply delays the
// next tick.
type Scheduler struct {
	store    Store
	executor *Executor
	interval time.Duration
	batch    int
}

func NewScheduler(st Store, ex *Executor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{store: st, executor: ex, interval: interval, batch: 100}
}

// Run blocks until ctx is cancelled. The first sweep happens immediately;
// the ticker paces the rest. Every error inside a sweep is logged and
// swallowed so the loop survives bad invoices and database hiccups.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("chase scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("chase scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep processes one batch of overdue invoices. Cancellation is honored
// between invoices so shutdown waits only for the in-flight one.
func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	invoices, err := s.store.FetchOverdueInvoices(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		log.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	if len(invoices) == 0 {
		return
	}
	log.Info().Int("count", len(invoices)).Msg("processing overdue invoices")

	processed := 0
	for i := range invoices {
		if ctx.Err() != nil {
			log.Info().Int("processed", processed).Msg("sweep interrupted by shutdown")
			return
		}
		if err := s.executor.ProcessInvoice(ctx, &invoices[i]); err != nil {
			log.Error().
				Err(err).
				Str("invoice", invoices[i].InvoiceNumber).
				Msg("chase failed, continuing sweep")
			continue
		}
		processed++
	}
	log.Info().Int("processed", processed).Int("total", len(invoices)).Msg("sweep finished")
}
