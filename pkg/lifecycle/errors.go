package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecache indicates a manifest entry could not be fetched or stored.
	ErrPrecache = errors.New("manifest precache failed")

	// ErrInvalidPhase indicates an operation was attempted in the wrong phase.
	ErrInvalidPhase = errors.New("invalid lifecycle phase")
)

func precacheErr(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPrecache, url, err)
}
