package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and an optional leading +")

	// ErrInvalidLength indicates phone number length is outside the E.164 range
	ErrInvalidLength = errors.New("phone number must have between 7 and 15 digits")
)

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator normalizes sender phone numbers from SMS and USSD gateways
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate accepts +254 712 345 678, 254-712-345678, (0712) 345678 and similar.
// Returns the digits-only form and an error if invalid.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if len(sanitized) < 7 || len(sanitized) > 15 {
		return "", ErrInvalidLength
	}

	return sanitized, nil
}

// Sanitize removes separators and a leading + from a phone number
func (v *PhoneValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")
	phone = replacer.Replace(strings.TrimSpace(phone))
	return strings.TrimPrefix(phone, "+")
}

// SessionID returns a stable key for phone, falling back to the sanitized raw
// value when it does not validate so gateways with odd formats still get sessions
func (v *PhoneValidator) SessionID(phone string) string {
	if sanitized, err := v.Validate(phone); err == nil {
		return sanitized
	}
	return v.Sanitize(phone)
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
