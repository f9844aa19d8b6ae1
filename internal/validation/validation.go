package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrQueryEmpty is returned when the query text is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("query text is required")

// ErrQueryTooLong is returned when the query text exceeds the maximum length.
var ErrQueryTooLong = errors.New("query text too long")

// ErrQueryInvalidChars is returned when the query contains control characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrTimezoneInvalid is returned when the timezone field has an implausible shape.
var ErrTimezoneInvalid = errors.New("timezone is invalid")

// ValidateQueryText trims the input and enforces a rune-length bound.
// Any printable Unicode is allowed since queries arrive in English, Chinese
// and Japanese; control characters are rejected. Returns the trimmed string
// or an error suitable for 400 INVALID_QUERY responses.
func ValidateQueryText(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrQueryEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if unicode.IsControl(c) && c != '\n' && c != '\t' {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// ValidateTimezone checks the shape of an IANA timezone string without
// loading it; the time resolver falls back to UTC for unknown zones. Empty
// is valid and means UTC.
func ValidateTimezone(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", nil
	}
	if len(s) > 64 {
		return "", ErrTimezoneInvalid
	}
	for _, c := range s {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '/' && c != '_' && c != '-' && c != '+' {
			return "", ErrTimezoneInvalid
		}
	}
	return s, nil
}
