package sanitizer

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrEmptyPhone   = errors.New("phone number is empty")
	ErrInvalidPhone = errors.New("phone number is not possible")
)

// DefaultRegion is used for numbers given without a country code.
var DefaultRegion = "US"

// NormalizePhone converts a caller-supplied number to E.164.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmptyPhone
	}

	parsed, err := phonenumbers.Parse(phone, DefaultRegion)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsPossibleNumber(parsed) {
		return "", ErrInvalidPhone
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// PhonesEqual compares two numbers after normalization. Unparseable input
// never matches.
func PhonesEqual(a, b string) bool {
	na, err := NormalizePhone(a)
	if err != nil {
		return false
	}
	nb, err := NormalizePhone(b)
	if err != nil {
		return false
	}
	return na == nb
}
