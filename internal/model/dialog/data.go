package dialog

import (
	"encoding/json"
	"fmt"
)

// Field names a booking detail collected from the guest.
type Field string

const (
	FieldDates   Field = "dates"
	FieldGuests  Field = "guests"
	FieldContact Field = "contact"
)

// requiredFields is the fixed collection order.
var requiredFields = [...]Field{FieldDates, FieldGuests, FieldContact}

const fieldCount = len(requiredFields)

// RequiredFields returns the fields in the order they are asked for.
func RequiredFields() []Field {
	out := make([]Field, fieldCount)
	copy(out, requiredFields[:])
	return out
}

func fieldIndex(f Field) (int, bool) {
	for i, known := range requiredFields {
		if known == f {
			return i, true
		}
	}
	return 0, false
}

type slot struct {
	value   string
	present bool
}

// CollectedData holds the booking fields. Each field is either absent or
// present; a present field may hold an empty string.
//
// The zero value has every field absent. CollectedData is a plain value:
// assigning it copies every slot, so a saved copy never observes later edits.
type CollectedData struct {
	slots [fieldCount]slot
}

// Get returns the value of f and whether it is present.
func (d CollectedData) Get(f Field) (string, bool) {
	i, ok := fieldIndex(f)
	if !ok {
		return "", false
	}
	s := d.slots[i]
	return s.value, s.present
}

// Present reports whether f holds a value.
func (d CollectedData) Present(f Field) bool {
	_, ok := d.Get(f)
	return ok
}

// Set marks f present with value. Unknown fields are rejected so the shape
// of the data never changes.
func (d *CollectedData) Set(f Field, value string) error {
	i, ok := fieldIndex(f)
	if !ok {
		return fmt.Errorf("unknown field %q", f)
	}
	d.slots[i] = slot{value: value, present: true}
	return nil
}

// Unset returns f to the absent state.
func (d *CollectedData) Unset(f Field) {
	if i, ok := fieldIndex(f); ok {
		d.slots[i] = slot{}
	}
}

// Clear makes every field absent.
func (d *CollectedData) Clear() {
	d.slots = [fieldCount]slot{}
}

// Missing lists absent fields in collection order.
func (d CollectedData) Missing() []Field {
	var missing []Field
	for i, f := range requiredFields {
		if !d.slots[i].present {
			missing = append(missing, f)
		}
	}
	return missing
}

// NextMissing returns the first absent field in collection order.
func (d CollectedData) NextMissing() (Field, bool) {
	for i, f := range requiredFields {
		if !d.slots[i].present {
			return f, true
		}
	}
	return "", false
}

// Complete reports whether every field is present.
func (d CollectedData) Complete() bool {
	_, missing := d.NextMissing()
	return !missing
}

// Map renders the data as field name to value, nil for absent fields.
func (d CollectedData) Map() map[string]*string {
	out := make(map[string]*string, fieldCount)
	for i, f := range requiredFields {
		if d.slots[i].present {
			v := d.slots[i].value
			out[string(f)] = &v
		} else {
			out[string(f)] = nil
		}
	}
	return out
}

// MarshalJSON encodes absent fields as null.
func (d CollectedData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}
