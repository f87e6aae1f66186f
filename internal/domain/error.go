package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Ledger errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountKindMismatch  = errors.New("account kind mismatch")
	ErrUnknownAccountKind   = errors.New("unknown account discriminator")
	ErrUnsupportedLayout    = errors.New("unsupported account layout version")
	ErrConflict             = errors.New("concurrent modification of account")

	// Address derivation errors
	ErrMaxSeedLength      = errors.New("seed exceeds maximum length")
	ErrTooManySeeds       = errors.New("too many seeds")
	ErrNoViableBump       = errors.New("unable to find a viable program address bump seed")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrDefaultAuthority   = errors.New("authority must not be the default address")
	ErrManagerUninitiated = errors.New("subscription manager is not initialized")

	// Plan validation errors
	ErrPlanIdTooLong           = errors.New("plan id is too long")
	ErrInvalidPlanId           = errors.New("plan id must not be empty")
	ErrNameTooLong             = errors.New("name is too long")
	ErrInvalidName             = errors.New("name must not be empty")
	ErrDescriptionTooLong      = errors.New("description is too long")
	ErrInvalidDescription      = errors.New("description must not be empty")
	ErrInvalidPrice            = errors.New("invalid price - must be greater than 0")
	ErrInvalidPeriodDuration   = errors.New("invalid period duration")
	ErrInvalidMaxSubscribers   = errors.New("max subscribers must be greater than 0")
	ErrInvalidTokenMint        = errors.New("invalid payment token mint")
	ErrInvalidWithdrawalAmount = errors.New("withdrawal amount must be greater than 0")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// State errors
	ErrPlanInactive          = errors.New("subscription plan is inactive")
	ErrPlanFull              = errors.New("subscription plan is full")
	ErrSubscriptionInactive  = errors.New("subscription is inactive")
	ErrSubscriptionPaused    = errors.New("subscription is paused")
	ErrSubscriptionNotPaused = errors.New("subscription is not paused")
	ErrPaymentNotDue         = errors.New("payment is not due yet")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")

	// External dependency errors
	ErrTransferFailed     = errors.New("token transfer failed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrClockUnavailable   = errors.New("trusted clock unavailable")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
