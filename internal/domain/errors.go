package domain

import "errors"

var (
	// ErrIndexUnavailable is returned when the search engine cannot be
	// reached or answers with an error.
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrReferenceResolution marks a failed batch lookup of source titles.
	// It is logged and recovered from, never surfaced to clients.
	ErrReferenceResolution = errors.New("reference resolution failed")

	ErrInvalidMode    = errors.New("invalid search mode")
	ErrInvalidSort    = errors.New("invalid sort option")
	ErrInvalidFacet   = errors.New("invalid facet key")
	ErrInvalidSurface = errors.New("invalid search surface")
)

// SearchFailedMessage is the calm, user-facing message shown for any failed
// search.
const SearchFailedMessage = "Failed to perform search. Please try again."
