package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrVersionConflict means a compare-and-set lost a race; the caller's transaction should be retried.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInsufficientBalance is returned by a debit larger than the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidPosting is returned when a posting would drive a wallet counter negative.
	ErrInvalidPosting = errors.New("invalid wallet posting")
)

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
