package portfolio

import "errors"

var (
	// ErrAlreadyInitialized is returned when Initialize is called on a ledger
	// whose cash has already been set.
	ErrAlreadyInitialized = errors.New("portfolio already initialized")

	// ErrNotInitialized is returned when a mutation is attempted before the
	// ledger's cash has been initialized.
	ErrNotInitialized = errors.New("portfolio not initialized")

	// ErrInsufficientCash is returned when a buy's total cost exceeds the
	// available cash.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientPosition is returned when a sell quantity exceeds the
	// held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")
)
