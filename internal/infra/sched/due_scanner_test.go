//go:build !integration

package sched_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain/model"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/clock"
	"subs3-ledger/internal/infra/events"
	"subs3-ledger/internal/infra/sched"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type MockDueLister struct {
	ListFunc func(ctx context.Context) ([]ucport.SubscriptionView, error)
}

func (m *MockDueLister) ListDueSubscriptions(ctx context.Context) ([]ucport.SubscriptionView, error) {
	return m.ListFunc(ctx)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, model.Event) error { return f.err }

func view(b byte, due int64) ucport.SubscriptionView {
	var a, s, p model.Address
	a[0], s[0], p[0] = b, b+1, b+2
	return ucport.SubscriptionView{
		Address: a,
		Subscription: &model.Subscription{
			Subscriber:       s,
			SubscriptionPlan: p,
			NextPaymentDue:   due,
			IsActive:         true,
		},
	}
}

func TestDueScanner_Scan(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(1_700_000_000)

	t.Run("should publish one event per due subscription", func(t *testing.T) {
		rec := &events.Recorder{}
		lister := &MockDueLister{ListFunc: func(context.Context) ([]ucport.SubscriptionView, error) {
			return []ucport.SubscriptionView{view(1, 100), view(10, 200)}, nil
		}}
		w := sched.NewDueScanner(time.Minute, lister, rec, clk, newTestLogger())

		n, err := w.Scan(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 events, got %d", n)
		}
		got := rec.OfType(model.EventPaymentDue)
		if len(got) != 2 {
			t.Fatalf("expected 2 recorded events, got %d", len(got))
		}
		if got[0].NextPaymentDue != 100 || got[0].OccurredAt != 1_700_000_000 {
			t.Errorf("unexpected event %+v", got[0])
		}
	})

	t.Run("should not announce the same due time twice", func(t *testing.T) {
		rec := &events.Recorder{}
		due := int64(100)
		lister := &MockDueLister{ListFunc: func(context.Context) ([]ucport.SubscriptionView, error) {
			return []ucport.SubscriptionView{view(1, due)}, nil
		}}
		w := sched.NewDueScanner(time.Minute, lister, rec, clk, newTestLogger())

		if n, _ := w.Scan(ctx); n != 1 {
			t.Fatalf("first scan: expected 1, got %d", n)
		}
		if n, _ := w.Scan(ctx); n != 0 {
			t.Fatalf("second scan: expected 0, got %d", n)
		}
		due = 200
		if n, _ := w.Scan(ctx); n != 1 {
			t.Fatalf("after due moved: expected 1, got %d", n)
		}
	})

	t.Run("should retry when publishing fails", func(t *testing.T) {
		lister := &MockDueLister{ListFunc: func(context.Context) ([]ucport.SubscriptionView, error) {
			return []ucport.SubscriptionView{view(1, 100)}, nil
		}}
		pub := &switchPublisher{fail: true}
		w := sched.NewDueScanner(time.Minute, lister, pub, clk, newTestLogger())

		if n, err := w.Scan(ctx); err != nil || n != 0 {
			t.Fatalf("expected 0 and no error, got %d, %v", n, err)
		}
		pub.fail = false
		if n, _ := w.Scan(ctx); n != 1 {
			t.Fatalf("expected the event on retry, got %d", n)
		}
	})

	t.Run("should return the lister error", func(t *testing.T) {
		boom := errors.New("store down")
		lister := &MockDueLister{ListFunc: func(context.Context) ([]ucport.SubscriptionView, error) {
			return nil, boom
		}}
		w := sched.NewDueScanner(time.Minute, lister, failingPublisher{}, clk, newTestLogger())
		if _, err := w.Scan(ctx); !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
	})
}

func TestDueScanner_Run(t *testing.T) {
	t.Run("should scan at startup and stop on cancel", func(t *testing.T) {
		rec := &events.Recorder{}
		lister := &MockDueLister{ListFunc: func(context.Context) ([]ucport.SubscriptionView, error) {
			return []ucport.SubscriptionView{view(1, 100)}, nil
		}}
		w := sched.NewDueScanner(time.Hour, lister, rec, clock.NewManual(1), newTestLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		deadline := time.After(2 * time.Second)
		for len(rec.Events()) == 0 {
			select {
			case <-deadline:
				t.Fatal("startup scan did not publish")
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

type switchPublisher struct{ fail bool }

func (s *switchPublisher) Publish(context.Context, model.Event) error {
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}
