package dialog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/analysis/field"
	"github.com/zhouzirui/sanatorium/backend/internal/analysis/intent"
	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/observability"
)

// Router dispatches a turn to the handler of the session's current stage.
type Router struct {
	validator    *field.Validator
	orchestrator *Orchestrator
	vocab        Vocabulary
	logger       *zap.Logger
	metrics      *observability.Metrics
}

func NewRouter(validator *field.Validator, orchestrator *Orchestrator, vocab Vocabulary, logger *zap.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		validator:    validator,
		orchestrator: orchestrator,
		vocab:        vocab,
		logger:       logger,
		metrics:      metrics,
	}
}

// Route applies text to the session and returns the turn's response.
// The session must be held exclusively by the caller.
func (r *Router) Route(ctx context.Context, s *dialog.Session, text string) dialog.Response {
	from := s.Stage
	r.metrics.RecordTurn(string(from))

	var resp dialog.Response
	switch s.Stage {
	case dialog.StageWelcome:
		resp = r.welcome(s, text)
	case dialog.StageCollecting:
		resp = r.collecting(s, text)
	case dialog.StageConfirming:
		resp = r.confirming(ctx, s, text)
	case dialog.StageCompleted, dialog.StageFailed:
		resp = r.finished(s, text)
	default:
		r.logger.Error("session in unknown stage, starting over",
			zap.String("session_id", s.ID),
			zap.String("stage", string(s.Stage)),
		)
		s.Reset()
		resp = r.welcome(s, text)
	}

	resp.SessionID = s.ID
	resp.Stage = s.Stage
	if resp.ErrorKind != dialog.ErrorNone {
		r.metrics.RecordValidationError(string(resp.ErrorKind))
	}
	r.metrics.RecordTransition(string(from), string(s.Stage))
	if from != s.Stage {
		r.logger.Debug("stage changed",
			zap.String("session_id", s.ID),
			zap.String("from", string(from)),
			zap.String("to", string(s.Stage)),
		)
	}
	return resp
}

func (r *Router) welcome(s *dialog.Session, text string) dialog.Response {
	tag := intent.Classify(text)
	resp := dialog.Response{Intent: string(tag)}

	if !s.Stack.Empty() && r.vocab.IsCancel(text) {
		s.Stack.Clear()
		return r.cancel(s)
	}
	if !s.Stack.Empty() && (tag == intent.Booking || r.vocab.IsResume(text)) {
		s.Restore()
		return r.resumed(s, resp)
	}

	switch tag {
	case intent.Booking:
		s.Stage = dialog.StageCollecting
		resp.NextPrompt = dialog.PromptBookingStart
		resp.MissingFields = s.Data.Missing()
	case intent.Pricing:
		resp.NextPrompt = dialog.PromptPricingInfo
		resp.Suspended = !s.Stack.Empty()
	default:
		resp.NextPrompt = dialog.PromptGeneralQA
		resp.Suspended = !s.Stack.Empty()
	}
	return resp
}

// resumed describes a session that just got its booking context back.
func (r *Router) resumed(s *dialog.Session, resp dialog.Response) dialog.Response {
	resp.CollectedData = s.Data.Map()
	if s.Stage == dialog.StageConfirming || s.Data.Complete() {
		s.Stage = dialog.StageConfirming
		resp.NextPrompt = dialog.PromptBookingConfirmation
		return resp
	}
	resp.NextPrompt = dialog.PromptBookingResume
	resp.MissingFields = s.Data.Missing()
	return resp
}

func (r *Router) collecting(s *dialog.Session, text string) dialog.Response {
	if r.vocab.IsCancel(text) {
		return r.cancel(s)
	}

	next, ok := s.Data.NextMissing()
	if !ok {
		return r.toConfirming(s, dialog.Response{})
	}

	value, err := r.validator.Validate(next, text)
	if err != nil {
		if tag := intent.Classify(text); tag == intent.Pricing {
			s.Save()
			s.Stage = dialog.StageWelcome
			return dialog.Response{
				Intent:     string(tag),
				NextPrompt: dialog.PromptPricingInfo,
				Suspended:  true,
			}
		}
		return dialog.Response{
			NextPrompt:    dialog.AskPrompt(next),
			ErrorKind:     validationKind(err),
			MissingFields: s.Data.Missing(),
		}
	}

	if err := s.Data.Set(next, value); err != nil {
		r.logger.Error("store field", zap.String("session_id", s.ID), zap.Error(err))
	}

	if r.orchestrator.IsComplete(s) {
		return r.toConfirming(s, dialog.Response{})
	}
	following, _ := s.Data.NextMissing()
	return dialog.Response{
		NextPrompt:    dialog.AskPrompt(following),
		MissingFields: s.Data.Missing(),
	}
}

func (r *Router) toConfirming(s *dialog.Session, resp dialog.Response) dialog.Response {
	s.Stage = dialog.StageConfirming
	resp.NextPrompt = dialog.PromptBookingConfirmation
	resp.CollectedData = s.Data.Map()
	return resp
}

func (r *Router) confirming(ctx context.Context, s *dialog.Session, text string) dialog.Response {
	if !r.orchestrator.IsComplete(s) {
		s.Stage = dialog.StageCollecting
		return dialog.Response{
			NextPrompt:    dialog.PromptAskMissingData,
			ErrorKind:     dialog.ErrorIncompleteData,
			MissingFields: s.Data.Missing(),
		}
	}

	switch {
	case r.vocab.IsConfirm(text):
		return r.confirm(ctx, s)
	case r.vocab.IsCancel(text):
		return r.cancel(s)
	default:
		return dialog.Response{
			NextPrompt:        dialog.PromptBookingConfirmation,
			AssistantResponse: fmt.Sprintf(msgConfirmReprompt, r.vocab.Hint()),
			CollectedData:     s.Data.Map(),
		}
	}
}

func (r *Router) confirm(ctx context.Context, s *dialog.Session) dialog.Response {
	outcome := r.orchestrator.Confirm(ctx, s)
	confirmed := outcome.Success

	if outcome.Success {
		s.Stage = dialog.StageCompleted
		s.Data.Clear()
		return dialog.Response{
			NextPrompt:        dialog.PromptBookingCompleted,
			AssistantResponse: fmt.Sprintf(msgBookingConfirmed, outcome.BookingID),
			BookingConfirmed:  &confirmed,
			BookingID:         outcome.BookingID,
		}
	}

	if errors.Is(outcome.Err, ErrIncompleteData) {
		s.Stage = dialog.StageCollecting
		return dialog.Response{
			NextPrompt:    dialog.PromptAskMissingData,
			ErrorKind:     dialog.ErrorIncompleteData,
			MissingFields: s.Data.Missing(),
		}
	}

	if errors.Is(outcome.Err, ErrInvalidData) {
		return r.recollect(s, outcome.Err)
	}

	s.Stage = dialog.StageFailed
	return dialog.Response{
		NextPrompt:        dialog.PromptBookingFailed,
		ErrorKind:         outcome.errorKind(),
		AssistantResponse: msgBookingFailed,
		BookingConfirmed:  &confirmed,
	}
}

func (r *Router) cancel(s *dialog.Session) dialog.Response {
	text := r.orchestrator.Cancel(s)
	s.Stage = dialog.StageWelcome
	confirmed := false
	return dialog.Response{
		NextPrompt:        dialog.PromptBookingCancelled,
		AssistantResponse: text,
		BookingConfirmed:  &confirmed,
	}
}

// finished answers in a terminal stage. Leaving it takes an explicit reset.
func (r *Router) finished(s *dialog.Session, text string) dialog.Response {
	return dialog.Response{
		Intent:     string(intent.Classify(text)),
		NextPrompt: dialog.PromptBookingFinished,
	}
}

// recollect drops the field that failed to parse and asks for it again.
func (r *Router) recollect(s *dialog.Session, err error) dialog.Response {
	kind := dialog.ErrorIncompleteData
	var fe *field.Error
	if errors.As(err, &fe) {
		s.Data.Unset(fe.Field)
		kind = validationKind(err)
	} else {
		s.Data.Clear()
	}
	s.Stage = dialog.StageCollecting
	next, _ := s.Data.NextMissing()
	return dialog.Response{
		NextPrompt:    dialog.AskPrompt(next),
		ErrorKind:     kind,
		MissingFields: s.Data.Missing(),
	}
}

func validationKind(err error) dialog.ErrorKind {
	var fe *field.Error
	if !errors.As(err, &fe) {
		return dialog.ErrorInvalidDate
	}
	switch fe.Kind {
	case field.InvalidDate:
		return dialog.ErrorInvalidDate
	case field.InvalidGuests:
		return dialog.ErrorInvalidGuests
	case field.InvalidContact:
		return dialog.ErrorInvalidContact
	default:
		return dialog.ErrorIncompleteData
	}
}
