package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrProductNotFound means a barcode had no match locally or at the source.
// Terminal and user-visible as an empty result, not a system failure.
var ErrProductNotFound = errors.New("product not found")

// ErrNotEnoughPantryItems is the internal skip condition for recipe
// generation. Never surfaced to the user as an error.
var ErrNotEnoughPantryItems = errors.New("not enough pantry items")

// RateLimitedError is returned when a per-operation limit on the external
// source is exceeded. The request fails immediately; RetryAfter is a hint.
type RateLimitedError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Op, e.RetryAfter.Round(time.Millisecond))
}

// TransportError wraps network or HTTP failures from the external source.
// The resolver degrades to local-only results where it can.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("external source %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError rejects malformed search criteria before any I/O.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
