package roast

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a lookup for a roast that does not exist.
var ErrNotFound = errors.New("roast not found")

// Stage identifies where in the pipeline a request failed.
type Stage string

// Pipeline stages, in execution order.
const (
	StageAdmission Stage = "admission"
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageGenerate  Stage = "generate"
	StagePersist   Stage = "persist"
)

// AdmissionReason distinguishes why a request was rejected before any
// costly work began.
type AdmissionReason string

// Admission rejection reasons.
const (
	ReasonPerMinuteExceeded AdmissionReason = "per_minute_exceeded"
	ReasonPerHourExceeded   AdmissionReason = "per_hour_exceeded"
	ReasonDailyCostExceeded AdmissionReason = "daily_cost_exceeded"
)

// AdmissionError reports a rejected admission. RetryAfter is zero for
// the daily ceiling, where the caller must wait for the day rollover.
type AdmissionError struct {
	Reason     AdmissionReason
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("admission denied: %s (retry after %s)", e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("admission denied: %s", e.Reason)
}

// InvalidInputError reports a URL that failed validation.
type InvalidInputError struct {
	URL    string
	Detail string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.URL, e.Detail)
}

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchTimeout          FetchErrorKind = "timeout"
	FetchNavigationFailed FetchErrorKind = "navigation_failed"
)

// FetchError reports that the site could not be rendered. Not retryable
// by the fetcher itself; a slow site is unlikely to improve on an
// immediate retry.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// GenerationErrorKind classifies generation failures.
type GenerationErrorKind string

// Generation failure kinds.
const (
	GenerationProviderError   GenerationErrorKind = "provider_error"
	GenerationInvalidResponse GenerationErrorKind = "invalid_response"
)

// GenerationError reports that the generation backend failed after the
// client's retry budget was spent.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError reports that a fully generated roast could not be
// saved. Kept distinct from GenerationError so callers know the model
// call succeeded but produced no artifact.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
