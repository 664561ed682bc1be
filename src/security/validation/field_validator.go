// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxSymbolLength = 30
	MaxBrokerLength = 50
	MaxSetupLength  = 100
	MaxNotesLength  = 2048
)

var symbolRegex = regexp.MustCompile(`^[A-Za-z0-9 ./_-]+$`)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateSymbol checks length and charset for a trade symbol as entered
// manually. Broker CSVs bypass this; their symbols are normalized instead.
func ValidateSymbol(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxSymbolLength, "symbol"); err != nil {
		return err
	}
	if !symbolRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: symbol ('%s') contains unexpected characters", ErrValidationFailed, s)
	}
	return nil
}

// ValidateSide accepts only the two canonical trade sides.
func ValidateSide(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "short":
		return nil
	}
	return fmt.Errorf("%w: side must be 'long' or 'short', got '%s'", ErrValidationFailed, s)
}

// ValidatePositiveFloat checks that a numeric field is strictly positive.
func ValidatePositiveFloat(v float64, fieldName string) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero, got %g", ErrValidationFailed, fieldName, v)
	}
	return nil
}

// ValidateDateRange checks that a close instant does not precede the open instant.
func ValidateDateRange(openedAt, closedAt time.Time) error {
	if closedAt.Before(openedAt) {
		return fmt.Errorf("%w: exit date is before entry date", ErrValidationFailed)
	}
	return nil
}
