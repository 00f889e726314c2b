package domain

import "errors"

var (
	// ErrUnsupportedFormat is returned for uploads whose filename does not
	// carry a recognized tabular-file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnreadablePayload is returned when a payload cannot be decoded and
	// parsed with the detected encoding nor the legacy fallback.
	ErrUnreadablePayload = errors.New("unreadable payload")
	// ErrCommitFailure indicates the bulk insert transaction failed as a
	// whole; no partial commit is observable.
	ErrCommitFailure = errors.New("bulk commit failed")
	// ErrInvalidPage is returned for non-integer or out-of-range page inputs.
	ErrInvalidPage = errors.New("invalid page number")
	// ErrBackendUnavailable indicates the index or primary store could not
	// serve a query.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNoFacetData is returned when the index response has no facet fields.
	ErrNoFacetData = errors.New("no facet data found")
	// ErrActivityNotFound is returned when a record cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
)
