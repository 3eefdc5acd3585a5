package dialog

// PromptKey names the template the text generator uses for a reply.
type PromptKey string

const (
	PromptGeneralQA           PromptKey = "general_qa"
	PromptPricingInfo         PromptKey = "pricing_info"
	PromptBookingStart        PromptKey = "booking_start"
	PromptBookingResume       PromptKey = "booking_resume"
	PromptAskDates            PromptKey = "ask_dates"
	PromptAskGuests           PromptKey = "ask_guests"
	PromptAskContact          PromptKey = "ask_contact"
	PromptAskMissingData      PromptKey = "ask_missing_data"
	PromptBookingConfirmation PromptKey = "booking_confirmation"
	PromptBookingCompleted    PromptKey = "booking_completed"
	PromptBookingFailed       PromptKey = "booking_failed"
	PromptBookingCancelled    PromptKey = "booking_cancelled"
	PromptBookingFinished     PromptKey = "booking_finished"
)

// AskPrompt returns the prompt that requests f.
func AskPrompt(f Field) PromptKey {
	switch f {
	case FieldDates:
		return PromptAskDates
	case FieldGuests:
		return PromptAskGuests
	case FieldContact:
		return PromptAskContact
	default:
		return PromptAskMissingData
	}
}

// ErrorKind is a recoverable condition reported to the guest.
type ErrorKind string

const (
	ErrorNone             ErrorKind = ""
	ErrorInvalidDate      ErrorKind = "invalid_date"
	ErrorInvalidGuests    ErrorKind = "invalid_guests"
	ErrorInvalidContact   ErrorKind = "invalid_contact"
	ErrorIncompleteData   ErrorKind = "incomplete_data"
	ErrorSubmissionFailed ErrorKind = "submission_failed"
	ErrorUnavailable      ErrorKind = "collaborator_unavailable"
)

// Response is what a turn produces: enough for the text generator to pick a
// template, or a literal reply when nothing needs generating.
type Response struct {
	SessionID         string             `json:"sessionId"`
	Stage             Stage              `json:"stage"`
	Intent            string             `json:"intent,omitempty"`
	NextPrompt        PromptKey          `json:"nextPrompt,omitempty"`
	ErrorKind         ErrorKind          `json:"errorKind,omitempty"`
	AssistantResponse string             `json:"assistantResponse,omitempty"`
	BookingConfirmed  *bool              `json:"bookingConfirmed,omitempty"`
	BookingID         string             `json:"bookingId,omitempty"`
	MissingFields     []Field            `json:"missingFields,omitempty"`
	Suspended         bool               `json:"suspended,omitempty"`
	CollectedData     map[string]*string `json:"collectedData,omitempty"`
}

// Literal reports whether the response already carries the reply text.
func (r Response) Literal() bool {
	return r.AssistantResponse != ""
}

// GenerationRequest is what the text generator needs to phrase one reply.
type GenerationRequest struct {
	SessionID string
	Prompt    PromptKey
	UserText  string
	Context   Response
	History   []Turn
}
