package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAnalysisFailed      = errors.New("analysis failed")
	ErrMissingFields       = errors.New("missing required fields")
	ErrInvalidInput        = errors.New("invalid input")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidState        = errors.New("invalid session state")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
