package domain

import (
	"context"
	"errors"
)

// ErrorKind classifies a failure so callers can decide how to surface it
// without matching every sentinel.
type ErrorKind string

const (
	KindUnknown       ErrorKind = "unknown"
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
	KindExternal      ErrorKind = "external"
)

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	// Transfer failures wrap the bank's own sentinel and are external whatever it says.
	{KindExternal, []error{ErrTransferFailed}},
	{KindAuthorization, []error{ErrUnauthorized, ErrDefaultAuthority}},
	{KindValidation, []error{
		ErrInvalidArgument, ErrPlanIdTooLong, ErrInvalidPlanId, ErrNameTooLong, ErrInvalidName,
		ErrDescriptionTooLong, ErrInvalidDescription, ErrInvalidPrice, ErrInvalidPeriodDuration,
		ErrInvalidMaxSubscribers, ErrInvalidTokenMint, ErrInvalidWithdrawalAmount,
		ErrMaxSeedLength, ErrTooManySeeds, ErrInvalidAddress, ErrArithmeticOverflow,
	}},
	{KindNotFound, []error{ErrNotFound, ErrAccountNotFound, ErrManagerUninitiated}},
	{KindConflict, []error{
		ErrAlreadyExists, ErrAccountAlreadyExists, ErrAccountKindMismatch, ErrConflict,
		ErrPlanInactive, ErrPlanFull, ErrSubscriptionInactive, ErrSubscriptionPaused,
		ErrSubscriptionNotPaused, ErrPaymentNotDue,
	}},
	{KindExternal, []error{
		ErrInsufficientFunds, ErrClockUnavailable, ErrOperationFailed,
		ErrInvalidExecContext, ErrReadDatabaseRow, ErrUnknownAccountKind, ErrUnsupportedLayout,
		ErrNoViableBump, context.DeadlineExceeded, context.Canceled,
	}},
}

// KindOf reports the category of err. Rows are checked in order, so an error
// joining several sentinels takes the first matching kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindUnknown
}

// IsRetryable reports whether the caller may safely retry the whole operation
// (after re-reading state). Only optimistic-concurrency losers qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
