package adapter

import (
	"context"

	"subs3-ledger/internal/domain/model"
)

// TransferRequest moves Amount units of Mint between token accounts. Reference
// makes the request idempotent: a repeated reference that already succeeded is
// reported as success without moving funds again.
type TransferRequest struct {
	From      model.Address
	To        model.Address
	ToOwner   model.Address // when set, To is opened for this owner if it does not exist
	Authority model.Address // principal allowed to debit From
	Mint      model.Address
	Amount    uint64
	Reference string
}

// TokenTransfer is the hex port for the value-transfer primitive.
type TokenTransfer interface {
	Transfer(ctx context.Context, req TransferRequest) error
	BalanceOf(ctx context.Context, account model.Address) (uint64, error)
}

// EventPublisher delivers committed-transition events. Publishing is best
// effort; a failure never rolls back the ledger.
type EventPublisher interface {
	Publish(ctx context.Context, evt model.Event) error
}

// Clock is the single trusted time source for every transition.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}
