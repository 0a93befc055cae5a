package common

import (
	"errors"
	"fmt"
)

// Domain errors - use errors.Is() to check
var (
	ErrInternal     = errors.New("internal error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
	ErrBadRequest   = errors.New("bad request")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")

	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrScanNotFound = fmt.Errorf("scan %w", ErrNotFound)
	ErrFileNotFound = fmt.Errorf("file %w", ErrNotFound)

	// Upstream model errors
	ErrUpstream     = errors.New("vision model request failed")
	ErrModelGarbled = fmt.Errorf("model returned no parseable JSON: %w", ErrUpstream)

	ErrValidation = errors.New("validation error")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
