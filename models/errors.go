package models

import "errors"

// Recoverable errors. Every one of them can be turned into a message for the
// user; none of them should end the session.
var (
	ErrAuthUnavailable           = errors.New("booking provider authentication unavailable")
	ErrLocationNotFound          = errors.New("location not found")
	ErrProviderQueryFailed       = errors.New("provider query failed")
	ErrBudgetExceeded            = errors.New("budget exceeded")
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrInvalidInput              = errors.New("invalid input")
	ErrMalformedGeneratedContent = errors.New("malformed generated content")
	ErrNotFound                  = errors.New("not found")
)

// ErrLedgerCorrupted means the remaining budget no longer matches the bookings.
// It is a programming error and the session must not continue.
var ErrLedgerCorrupted = errors.New("budget ledger corrupted")
