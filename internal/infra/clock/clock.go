// Package clock provides the trusted time sources handed to the billing engine.
package clock

import (
	"context"
	"sync"
	"time"

	"subs3-ledger/internal/domain/ports/adapter"
)

var (
	_ adapter.Clock = System{}
	_ adapter.Clock = (*Manual)(nil)
)

// System reads the host wall clock in unix seconds.
type System struct{}

func (System) Now(context.Context) (int64, error) { return time.Now().Unix(), nil }

// Manual only moves when told to. The demo and tests use it to step through billing periods.
type Manual struct {
	mu  sync.Mutex
	now int64
}

func NewManual(start int64) *Manual { return &Manual{now: start} }

func (m *Manual) Now(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now, nil
}

// Advance moves the clock forward by seconds and returns the new time.
func (m *Manual) Advance(seconds int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
	return m.now
}

func (m *Manual) Set(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
