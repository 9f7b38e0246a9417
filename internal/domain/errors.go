package domain

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned by a full run against an empty source registry,
// which is a wiring bug rather than an ingestion failure.
var ErrNoSources = errors.New("no sources registered")

// UnknownSourceError marks a single-source run request for a source ID that
// was never registered. A configuration error, not retried.
type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q", e.Source)
}

// PartyNotFoundError marks an adapter declaring a party that was never
// seeded. It aborts that adapter's run only.
type PartyNotFoundError struct {
	Party string
}

func (e *PartyNotFoundError) Error() string {
	return fmt.Sprintf("party %q not found", e.Party)
}
