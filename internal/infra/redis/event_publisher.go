package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*EventPublisher)(nil)

// EventPublisher fans ledger events out on a Redis pub/sub channel as JSON.
type EventPublisher struct {
	c       *Client
	channel string
}

func NewEventPublisher(c *Client, channel string) *EventPublisher {
	return &EventPublisher{c: c, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, evt model.Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.c.cli.Publish(ctx, p.channel, b).Err()
}
