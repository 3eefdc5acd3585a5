package field

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
)

func TestValidateDates(t *testing.T) {
	v := New(0)

	got, err := v.Validate(dialog.FieldDates, " 20250101 ")
	require.NoError(t, err)
	assert.Equal(t, "20250101", got)

	got, err = v.Validate(dialog.FieldDates, "20250101-20250110")
	require.NoError(t, err)
	assert.Equal(t, "20250101-20250110", got)
}

func TestValidateDatesRejects(t *testing.T) {
	v := New(0)

	for _, raw := range []string{"not-a-date", "", "2025-01-01", "20251301", "20250110-20250101", "20250101-20250101"} {
		_, err := v.Validate(dialog.FieldDates, raw)
		require.Error(t, err, raw)

		var fieldErr *Error
		require.True(t, errors.As(err, &fieldErr), raw)
		assert.Equal(t, InvalidDate, fieldErr.Kind, raw)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestValidateGuests(t *testing.T) {
	v := New(4)

	got, err := v.Validate(dialog.FieldGuests, "02")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	for _, raw := range []string{"0", "5", "two", "-1"} {
		_, err := v.Validate(dialog.FieldGuests, raw)
		var fieldErr *Error
		require.True(t, errors.As(err, &fieldErr), raw)
		assert.Equal(t, InvalidGuests, fieldErr.Kind)
	}
}

func TestValidateContact(t *testing.T) {
	v := New(0)

	got, err := v.Validate(dialog.FieldContact, "+7 (910) 123-45-67")
	require.NoError(t, err)
	assert.Equal(t, "+79101234567", got)

	got, err = v.Validate(dialog.FieldContact, "Guest@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", got)
	assert.True(t, IsEmail(got))

	_, err = v.Validate(dialog.FieldContact, "call me maybe")
	var fieldErr *Error
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, InvalidContact, fieldErr.Kind)
}

func TestParseDatesSingle(t *testing.T) {
	in, out, err := ParseDates("20250101")
	require.NoError(t, err)
	assert.Equal(t, "20250101", in.Format(DateLayout))
	assert.True(t, out.IsZero())
}
