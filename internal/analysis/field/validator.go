package field

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
)

// DateLayout is the accepted calendar date format (YYYYMMDD).
const DateLayout = "20060102"

// DefaultMaxGuests bounds the guest count when no limit is configured.
const DefaultMaxGuests = 10

// Kind classifies a rejected value.
type Kind string

const (
	InvalidDate    Kind = "invalid_date"
	InvalidGuests  Kind = "invalid_guests"
	InvalidContact Kind = "invalid_contact"
	UnknownField   Kind = "unknown_field"
)

// ErrInvalid is wrapped by every validation Error.
var ErrInvalid = errors.New("invalid field value")

// Error reports why a value was rejected for a field.
type Error struct {
	Field  dialog.Field
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Validator applies the per-field acceptance rules.
type Validator struct {
	maxGuests int
}

// New returns a Validator. maxGuests <= 0 selects DefaultMaxGuests.
func New(maxGuests int) *Validator {
	if maxGuests <= 0 {
		maxGuests = DefaultMaxGuests
	}
	return &Validator{maxGuests: maxGuests}
}

// Validate checks raw input for f and returns the normalized value to store.
func (v *Validator) Validate(f dialog.Field, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	switch f {
	case dialog.FieldDates:
		return validateDates(value)
	case dialog.FieldGuests:
		return v.validateGuests(value)
	case dialog.FieldContact:
		return validateContact(value)
	default:
		return "", &Error{Field: f, Kind: UnknownField, Reason: "field is not collected"}
	}
}

// validateDates accepts a single YYYYMMDD date or a YYYYMMDD-YYYYMMDD range
// whose check-out is after check-in.
func validateDates(value string) (string, error) {
	checkIn, checkOut, err := ParseDates(value)
	if err != nil {
		return "", err
	}
	if checkOut.IsZero() {
		return checkIn.Format(DateLayout), nil
	}
	return checkIn.Format(DateLayout) + "-" + checkOut.Format(DateLayout), nil
}

// ParseDates splits a stored dates value into check-in and check-out. The
// check-out is zero for a single date.
func ParseDates(value string) (time.Time, time.Time, error) {
	first, second, isRange := strings.Cut(value, "-")
	checkIn, err := time.Parse(DateLayout, strings.TrimSpace(first))
	if err != nil {
		return time.Time{}, time.Time{}, &Error{Field: dialog.FieldDates, Kind: InvalidDate, Reason: fmt.Sprintf("%q is not a YYYYMMDD date", first)}
	}
	if !isRange {
		return checkIn, time.Time{}, nil
	}

	checkOut, err := time.Parse(DateLayout, strings.TrimSpace(second))
	if err != nil {
		return time.Time{}, time.Time{}, &Error{Field: dialog.FieldDates, Kind: InvalidDate, Reason: fmt.Sprintf("%q is not a YYYYMMDD date", second)}
	}
	if !checkOut.After(checkIn) {
		return time.Time{}, time.Time{}, &Error{Field: dialog.FieldDates, Kind: InvalidDate, Reason: "check-out must be after check-in"}
	}
	return checkIn, checkOut, nil
}

func (v *Validator) validateGuests(value string) (string, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", &Error{Field: dialog.FieldGuests, Kind: InvalidGuests, Reason: fmt.Sprintf("%q is not a number", value)}
	}
	if n < 1 || n > v.maxGuests {
		return "", &Error{Field: dialog.FieldGuests, Kind: InvalidGuests, Reason: fmt.Sprintf("guest count must be between 1 and %d", v.maxGuests)}
	}
	return strconv.Itoa(n), nil
}

func validateContact(value string) (string, error) {
	if emailPattern.MatchString(value) {
		return strings.ToLower(value), nil
	}
	phone := phoneNoise.Replace(value)
	if phonePattern.MatchString(phone) {
		return phone, nil
	}
	return "", &Error{Field: dialog.FieldContact, Kind: InvalidContact, Reason: "expected a phone number or an e-mail address"}
}

// IsEmail reports whether a stored contact is an e-mail address.
func IsEmail(contact string) bool {
	return emailPattern.MatchString(contact)
}
