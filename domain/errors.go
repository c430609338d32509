package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure classes.
var (
	// ErrTransientFetch marks network and rate-limit failures worth
	// retrying before the source's cycle is declared failed.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrParse marks a malformed page or API payload. Single bad items are
	// skipped and counted; a response that cannot be decoded at all fails
	// the call.
	ErrParse = errors.New("parse error")
	// ErrStoreWrite aborts the owning source's cycle only.
	ErrStoreWrite = errors.New("store write error")
	// ErrRender fails the affected scope's render only; the ingestion
	// result is preserved.
	ErrRender = errors.New("render error")

	ErrSourceNotFound = errors.New("source not found")
)

// CycleError wraps a failure with the source and stage it happened in.
type CycleError struct {
	SourceID int64
	Stage    CycleState
	Wrapped  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("source %d: %s: %s", e.SourceID, e.Stage, e.Wrapped)
}

func (e *CycleError) Unwrap() error { return e.Wrapped }

// NewCycleError creates a CycleError.
func NewCycleError(sourceID int64, stage CycleState, wrapped error) *CycleError {
	return &CycleError{SourceID: sourceID, Stage: stage, Wrapped: wrapped}
}
