package fhss

import "errors"

// Sentinel errors, wrapped with %w at each call site that adds context
// (mirrors nrf24.ErrPkg/ErrMaxRetries/ErrTimeout's wrapping style).
var (
	// ErrHardwareInit signals the radio never responded to probing. Fatal:
	// the caller should halt rather than enter any operational state.
	ErrHardwareInit = errors.New("fhss: radio hardware did not respond to initialization")

	// ErrConfigInvalid signals an inconsistent (ART delay, ART attempts,
	// frame cadence) triple, or an oversized payload. Fatal at startup.
	ErrConfigInvalid = errors.New("fhss: link configuration is invalid")

	// ErrInvalidSessionKey signals an attempt to commit a zero session key:
	// zero is reserved as the "no session" sentinel and must never be
	// committed as an actual key.
	ErrInvalidSessionKey = errors.New("fhss: session key must be non-zero")
)
