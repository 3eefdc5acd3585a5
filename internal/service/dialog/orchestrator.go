package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/model/booking"
	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/observability"
)

// Submitter sends a confirmed booking to the booking system. A returned
// error means the system could not be reached; a rejected booking comes
// back as a Result with Success false.
type Submitter interface {
	Submit(ctx context.Context, req booking.Request) (booking.Result, error)
}

// Outcome is the result of a confirmation attempt.
type Outcome struct {
	Success   bool
	BookingID string
	Reason    string
	Err       error
}

// Orchestrator finalizes bookings. It never changes the session stage;
// the router decides what a given outcome means for the conversation.
type Orchestrator struct {
	submitter Submitter
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewOrchestrator(submitter Submitter, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		submitter: submitter,
		logger:    logger,
		metrics:   metrics,
	}
}

// IsComplete reports whether every required field is present.
func (o *Orchestrator) IsComplete(s *dialog.Session) bool {
	return s.Data.Complete()
}

// Confirm submits the collected data. Incomplete data is never sent.
func (o *Orchestrator) Confirm(ctx context.Context, s *dialog.Session) Outcome {
	if !o.IsComplete(s) {
		return Outcome{Reason: "booking data is incomplete", Err: ErrIncompleteData}
	}

	req, err := booking.NewRequest(s.Data)
	if err != nil {
		return Outcome{Reason: err.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidData, err)}
	}

	start := time.Now()
	result, err := o.submitter.Submit(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		o.metrics.RecordBooking("unavailable", elapsed)
		o.logger.Error("booking submission failed",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		return Outcome{
			Reason: "booking system unavailable",
			Err:    fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err),
		}
	}

	if !result.Success {
		o.metrics.RecordBooking("rejected", elapsed)
		o.logger.Warn("booking rejected",
			zap.String("session_id", s.ID),
			zap.String("reason", result.Error),
		)
		return Outcome{Reason: result.Error, Err: ErrSubmission}
	}

	o.metrics.RecordBooking("success", elapsed)
	o.logger.Info("booking confirmed",
		zap.String("session_id", s.ID),
		zap.String("booking_id", result.BookingID),
		zap.Int("guests", req.GuestCount),
		zap.Int("nights", req.Nights()),
	)
	return Outcome{Success: true, BookingID: result.BookingID}
}

// Cancel drops the collected fields.
func (o *Orchestrator) Cancel(s *dialog.Session) string {
	s.Data.Clear()
	o.logger.Info("booking cancelled", zap.String("session_id", s.ID))
	return msgBookingCancelled
}

// errorKind maps an outcome error to what the guest is told.
func (out Outcome) errorKind() dialog.ErrorKind {
	switch {
	case out.Err == nil:
		return dialog.ErrorNone
	case errors.Is(out.Err, ErrIncompleteData):
		return dialog.ErrorIncompleteData
	default:
		return dialog.ErrorSubmissionFailed
	}
}
