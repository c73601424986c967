package domain

import "errors"

var (
	ErrInvalidSeriesConfiguration = errors.New("invalid series configuration")
	ErrProviderFailure            = errors.New("meeting provider failure")
	ErrPersistenceFailure         = errors.New("occurrence persistence failure")
	ErrHolidayResolutionExhausted = errors.New("holiday shift limit exceeded")

	ErrOccurrenceNotFound  = errors.New("occurrence not found")
	ErrDuplicateOccurrence = errors.New("occurrence already exists")
	ErrStoreUnavailable    = errors.New("record store unavailable")
)
