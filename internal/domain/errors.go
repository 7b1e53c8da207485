package domain

import "errors"

// Error taxonomy shared by the converter, resolver, snapshot reader,
// composer and aggregator. Callers match with errors.Is.
var (
	// ErrInvalidAmount is returned for negative, non-finite, non-numeric,
	// zero (where a positive amount is required) or overflowing amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMissingSigner is returned when an operation is requested without an owner.
	ErrMissingSigner = errors.New("missing signer")

	// ErrInvalidKey is returned for malformed or off-curve public keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrSnapshotUnavailable is returned when protocol state cannot be read or decoded.
	ErrSnapshotUnavailable = errors.New("protocol snapshot unavailable")

	// ErrEnrichmentFailure is returned when any per-account lookup fails
	// during position aggregation.
	ErrEnrichmentFailure = errors.New("stake account enrichment failed")
)
