package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrTableNotAllowed    = errors.New("table not in tenant allow-list")
	ErrColumnNotAllowed   = errors.New("column not in tenant allow-list")
	ErrPoolLimitReached   = errors.New("tenant pool limit reached")
	ErrSerializationRetry = errors.New("serialization retries exhausted")
)
