// Package events delivers ledger events to logs and other publishers.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/adapter"
)

var (
	_ adapter.EventPublisher = (*LogSink)(nil)
	_ adapter.EventPublisher = (*Fanout)(nil)
	_ adapter.EventPublisher = (*Recorder)(nil)
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "events").Logger()}
}

func (s *LogSink) Publish(_ context.Context, evt model.Event) error {
	e := s.log.Info().
		Str("event_id", evt.ID).
		Str("event_type", string(evt.Type)).
		Int64("occurred_at", evt.OccurredAt)
	if evt.Plan != nil {
		e = e.Str("plan", evt.Plan.String())
	}
	if evt.Subscription != nil {
		e = e.Str("subscription", evt.Subscription.String())
	}
	if evt.Amount != 0 {
		e = e.Uint64("amount", evt.Amount)
	}
	if evt.PaymentNumber != 0 {
		e = e.Uint32("payment_number", evt.PaymentNumber)
	}
	e.Msg("ledger event")
	return nil
}

// Fanout publishes to every target and joins their errors.
type Fanout struct {
	targets []adapter.EventPublisher
}

func NewFanout(targets ...adapter.EventPublisher) *Fanout {
	return &Fanout{targets: targets}
}

func (f *Fanout) Publish(ctx context.Context, evt model.Event) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory, for the demo and tests.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *Recorder) Publish(_ context.Context, evt model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t model.EventType) []model.Event {
	var out []model.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
