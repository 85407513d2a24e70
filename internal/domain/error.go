package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValidation      = errors.New("validation failed")

	// Provider errors. Adapters wrap these so callers can branch with errors.Is.
	ErrProviderUnreachable     = errors.New("payment provider unreachable")
	ErrProviderRejected        = errors.New("payment provider rejected request")
	ErrUnconfiguredProvider    = errors.New("payment provider not configured")
	ErrAccountResolutionFailed = errors.New("bank account resolution failed")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
	ErrUnsupported             = errors.New("operation not supported by provider")

	// Ledger errors. ErrAmountMismatch is diagnostic only and is never returned.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("invalid state for transition")
	ErrAmountMismatch      = errors.New("provider amount differs from expected amount")
	ErrLockNotAcquired     = errors.New("could not acquire lock")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
