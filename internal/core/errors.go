package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownCategory = errors.New("unknown category")
	ErrStorage         = errors.New("storage error")
	ErrFetch           = errors.New("fetch error")

	// ErrRecommendationUnavailable never reaches API callers; it is logged and
	// replaced with a readable message.
	ErrRecommendationUnavailable = errors.New("recommendation unavailable")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidUnit   = errors.New("invalid unit")
	ErrEmptyCategory = errors.New("empty category")
)

// StorageErr tags err as a persistence failure while keeping the cause matchable.
func StorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// IsValidation reports whether err came from rejecting caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidUnit) ||
		errors.Is(err, ErrEmptyCategory)
}
