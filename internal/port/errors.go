package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrUnknownTask        = errors.New("unknown task type")
	ErrInvalidRepoRef     = errors.New("invalid repository reference")
	ErrListingTruncated   = errors.New("repository listing truncated")
	ErrUnsupportedHost    = errors.New("unsupported repository host")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrProjectNotFound    = fmt.Errorf("project %w", ErrNotFound)
	ErrRepositoryNotFound = fmt.Errorf("repository %w", ErrNotFound)
)
