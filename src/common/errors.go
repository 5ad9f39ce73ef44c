package common

import "errors"

var (
	// ErrInvalidTickets means the requested ticket set did not match the
	// purchaser's PENDING tickets exactly. Initiation is all-or-nothing, so
	// a partial match fails the whole request.
	ErrInvalidTickets = errors.New("invalid tickets")

	ErrEventNotFound = errors.New("event not found")

	// ErrMissingCorrelation means a ticket was asked to reconcile without a
	// stored provider correlation id.
	ErrMissingCorrelation = errors.New("missing payment correlation id")

	ErrInvalidQRFormat = errors.New("invalid QR code format")

	ErrForbidden = errors.New("forbidden")
)
