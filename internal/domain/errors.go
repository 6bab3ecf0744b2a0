package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Verification workflow sentinels. ErrExpired is deliberately distinct
	// from ErrInvalidCode/ErrInvalidToken: a credential that matched but aged
	// out must never be reported as a mismatch.
	ErrInvalidCode  = errors.New("invalid code")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrExpired      = errors.New("expired")
	ErrLocked       = errors.New("account locked")
)
