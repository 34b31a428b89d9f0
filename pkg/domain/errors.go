package domain

import "errors"

// error kinds shared across the pipeline, matched with errors.Is
var (
	// ErrValidation signals an attempt to persist an event below the
	// confidence gate or with an invalid enum value
	ErrValidation = errors.New("validation error")

	// ErrInvalidResponse signals a classifier response that failed schema
	// validation, retryable on a future run
	ErrInvalidResponse = errors.New("invalid classifier response")

	// ErrBudgetExceeded signals a fetch skipped because the per-run
	// request budget ran out
	ErrBudgetExceeded = errors.New("request budget exceeded")
)
