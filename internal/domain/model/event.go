package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventPlanCreated           EventType = "plan_created"
	EventPlanStatusChanged     EventType = "plan_status_changed"
	EventSubscriptionCreated   EventType = "subscription_created"
	EventPaymentProcessed      EventType = "payment_processed"
	EventSubscriptionPaused    EventType = "subscription_paused"
	EventSubscriptionResumed   EventType = "subscription_resumed"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventFundsWithdrawn        EventType = "funds_withdrawn"
	EventPaymentDue            EventType = "payment_due"
)

// Event is an audit record emitted after a transition commits. Fields that do
// not apply to a given type are left zero.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OccurredAt     int64     `json:"occurred_at"`
	Provider       *Address  `json:"provider,omitempty"`
	Subscriber     *Address  `json:"subscriber,omitempty"`
	Plan           *Address  `json:"plan,omitempty"`
	Subscription   *Address  `json:"subscription,omitempty"`
	PlanID         string    `json:"plan_id,omitempty"`
	Amount         uint64    `json:"amount,omitempty"`
	PaymentNumber  uint32    `json:"payment_number,omitempty"`
	NextPaymentDue int64     `json:"next_payment_due,omitempty"`
	Active         *bool     `json:"active,omitempty"`
}

// NewEvent stamps a ULID id derived from the event time.
func NewEvent(typ EventType, at int64) Event {
	ms := uint64(0)
	if at > 0 {
		ms = ulid.Timestamp(time.Unix(at, 0))
	}
	id := ulid.MustNew(ms, rand.Reader)
	return Event{ID: id.String(), Type: typ, OccurredAt: at}
}

// Ref returns a pointer to a copy of a, for optional event fields.
func Ref(a Address) *Address { return &a }
