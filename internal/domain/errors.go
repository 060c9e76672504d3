package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExternalFetch marks any failed call to an external quote, feed or node.
	ErrExternalFetch = errors.New("external fetch failed")

	// ErrMalformedResponse is an external response that violates its expected shape.
	// It is classified as an external fetch failure.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrExternalFetch)

	ErrTokenNotFound       = errors.New("token not found")
	ErrWalletNotRecognized = errors.New("wallet not recognized")

	// ErrInvalidInput is a caller contract violation (negative amounts, zero rates, ...).
	ErrInvalidInput = errors.New("invalid input")
)
