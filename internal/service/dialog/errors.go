package dialog

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRequired = errors.New("session id is required")

	// ErrIncompleteData means confirmation was attempted before every field was collected.
	ErrIncompleteData = errors.New("booking data is incomplete")
	// ErrInvalidData means a stored field no longer parses into a booking request.
	ErrInvalidData = errors.New("booking data is invalid")
	// ErrSubmission means the booking system answered but rejected the booking.
	ErrSubmission = errors.New("booking submission failed")
	// ErrCollaboratorUnavailable wraps transport failures of the booking system or the text generator.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
