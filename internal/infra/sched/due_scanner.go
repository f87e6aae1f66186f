package sched

import (
	"context"
	"sync"
	"time"

	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/adapter"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const jobDueScan = "due_scan"

// DueLister is the slice of the billing engine the scanner reads.
type DueLister interface {
	ListDueSubscriptions(ctx context.Context) ([]ucport.SubscriptionView, error)
}

// DueScanner periodically reports subscriptions whose payment is due. It never
// charges anyone: payments stay subscriber-signed. Each (subscription, due
// time) pair is announced once per process.
type DueScanner struct {
	interval time.Duration
	billing  DueLister
	events   adapter.EventPublisher
	clock    adapter.Clock
	log      *zerolog.Logger

	mu        sync.Mutex
	announced map[model.Address]int64
}

func NewDueScanner(interval time.Duration, billing DueLister, events adapter.EventPublisher, clock adapter.Clock, logger *zerolog.Logger) *DueScanner {
	if interval <= 0 {
		interval = time.Minute
	}
	compLog := logger.With().Str("component", "DueScanner").Logger()
	return &DueScanner{
		interval:  interval,
		billing:   billing,
		events:    events,
		clock:     clock,
		log:       &compLog,
		announced: make(map[model.Address]int64),
	}
}

func (w *DueScanner) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting due scanner")
	w.runScan(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping due scanner")
			return ctx.Err()
		case <-ticker.C:
			w.runScan(ctx)
		}
	}
}

func (w *DueScanner) runScan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.Scan(scanCtx)
	if err != nil {
		metrics.IncJobRun(jobDueScan, "error")
		w.log.Error().Err(err).Msg("due scan failed")
		return
	}
	metrics.IncJobRun(jobDueScan, "ok")
	if n > 0 {
		w.log.Info().Int("count", n).Msg("payment due events published")
	}
}

// Scan runs one pass and returns how many new payment_due events it published.
func (w *DueScanner) Scan(ctx context.Context) (int, error) {
	due, err := w.billing.ListDueSubscriptions(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SetSubscriptionsDue(len(due))

	now, err := w.clock.Now(ctx)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[model.Address]int64, len(due))
	published := 0
	for _, v := range due {
		current[v.Address] = v.Subscription.NextPaymentDue
		if last, ok := w.announced[v.Address]; ok && last == v.Subscription.NextPaymentDue {
			continue
		}
		evt := model.NewEvent(model.EventPaymentDue, now)
		evt.Subscription = model.Ref(v.Address)
		evt.Subscriber = model.Ref(v.Subscription.Subscriber)
		evt.Plan = model.Ref(v.Subscription.SubscriptionPlan)
		evt.NextPaymentDue = v.Subscription.NextPaymentDue
		if err := w.events.Publish(ctx, evt); err != nil {
			w.log.Warn().Err(err).Str("subscription", v.Address.String()).Msg("publish payment_due failed")
			// retried on the next tick
			delete(current, v.Address)
			continue
		}
		published++
	}
	// forget subscriptions that were paid or cancelled
	w.announced = current
	return published, nil
}
