package apperror

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError rejects user input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DecodeError means an image could not be decoded for dimension checks.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to load image for validation: %v", e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrInvalidInput, e.Err} }

// UploadError is a non-2xx answer from the pinning API.
type UploadError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pinning upload failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("pinning upload failed (status %d): %s", e.StatusCode, e.Body)
}

func (e *UploadError) Unwrap() error { return ErrUpload }

// FetchError means no gateway produced the document.
type FetchError struct {
	CID               string
	AttemptedGateways []string
	LastErr           error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s from %d gateway(s) [%s]: %v",
		e.CID, len(e.AttemptedGateways), strings.Join(e.AttemptedGateways, ", "), e.LastErr)
}

func (e *FetchError) Unwrap() error { return ErrFetch }

// ResolutionError wraps a failed resolve of an address or project id.
type ResolutionError struct {
	Key string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// SchemaMismatchError means the document at a CID is not the expected variant.
type SchemaMismatchError struct {
	CID      string
	Expected string
	Got      string
	Details  []string
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("document %s: expected %q, got %q", e.CID, e.Expected, e.Got)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// ChainError is a failed contract call or a reverted transaction.
type ChainError struct {
	Op     string
	TxHash string
	Reason string
	Err    error
}

func (e *ChainError) Error() string {
	msg := "chain " + e.Op + " failed"
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChainError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrChain, e.Err}
	}
	return []error{ErrChain}
}

// CooldownActiveError carries the time left before the next update is allowed.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active: %d seconds remaining", int64(e.Remaining.Seconds()))
}

func (e *CooldownActiveError) Unwrap() error { return ErrCooldown }

// AlreadyExistsError means a record exists where a create was attempted.
type AlreadyExistsError struct {
	Resource string
	Key      string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Resource, e.Key)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrConflict }

// InvalidStateError rejects an operation not allowed in the current state.
type InvalidStateError struct {
	Resource string
	From     string
	To       string
	Reason   string
}

func (e *InvalidStateError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("%s: illegal transition %s -> %s", e.Resource, e.From, e.To)
	}
	return fmt.Sprintf("%s in state %s: %s", e.Resource, e.From, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
