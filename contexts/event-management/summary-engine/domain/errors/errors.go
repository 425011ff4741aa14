package errors

import "errors"

var (
	ErrSummaryNotFound     = errors.New("event summary not found")
	ErrInvalidOccurrence   = errors.New("invalid occurrence input")
	ErrInvalidAgingLimit   = errors.New("aging limit must be positive")
	ErrInvalidAgingWindow  = errors.New("invalid aging interval")
	ErrStorageFailure      = errors.New("event storage failure")
	ErrDroppedClearEvent   = errors.New("clear event matched no open summaries")
	ErrMissingClearContext = errors.New("clear event missing correlation fields")
)
