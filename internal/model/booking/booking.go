package booking

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zhouzirui/sanatorium/backend/internal/analysis/field"
	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
)

// Request is submitted to the booking system once the guest confirms.
type Request struct {
	Dates      string    `json:"dates"`
	CheckIn    time.Time `json:"checkIn"`
	CheckOut   time.Time `json:"checkOut"`
	GuestCount int       `json:"guestCount"`
	Contact    string    `json:"contact"`
}

// Result is the booking system's answer.
type Result struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewRequest builds a request from collected data. A single date books one
// night.
func NewRequest(data dialog.CollectedData) (Request, error) {
	dates, ok := data.Get(dialog.FieldDates)
	if !ok {
		return Request{}, fmt.Errorf("%s is missing", dialog.FieldDates)
	}
	guests, ok := data.Get(dialog.FieldGuests)
	if !ok {
		return Request{}, fmt.Errorf("%s is missing", dialog.FieldGuests)
	}
	contact, ok := data.Get(dialog.FieldContact)
	if !ok {
		return Request{}, fmt.Errorf("%s is missing", dialog.FieldContact)
	}

	checkIn, checkOut, err := field.ParseDates(dates)
	if err != nil {
		return Request{}, err
	}
	if checkOut.IsZero() {
		checkOut = checkIn.AddDate(0, 0, 1)
	}

	count, err := strconv.Atoi(guests)
	if err != nil {
		return Request{}, &field.Error{Field: dialog.FieldGuests, Kind: field.InvalidGuests, Reason: fmt.Sprintf("%q is not a number", guests)}
	}

	return Request{
		Dates:      dates,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: count,
		Contact:    contact,
	}, nil
}

// Nights is the length of the stay.
func (r Request) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}
