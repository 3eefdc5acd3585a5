package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/sanatorium/backend/internal/analysis/field"
	"github.com/zhouzirui/sanatorium/backend/internal/config"
	"github.com/zhouzirui/sanatorium/backend/internal/model/booking"
)

const (
	bookingPath = "/api/booking"
	// wireDateLayout is the booking system's check-in/check-out format, noon local.
	wireDateLayout = "200601021504"
	checkInHour    = 12
)

var ErrBadStatus = errors.New("unexpected CRM status")

// wireRequest is the payload the booking system expects. The misspelled
// date keys are part of its contract.
type wireRequest struct {
	CheckInDate  string `json:"ChekInDate"`
	CheckOutDate string `json:"ChekOutDate"`
	Adult        int    `json:"Adult"`
	Phone        string `json:"Phone,omitempty"`
	Email        string `json:"Email,omitempty"`
}

type wireResponse struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId"`
	Error     string `json:"error"`
}

// Client submits bookings to a remote CRM over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries uint
	httpClient *http.Client
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.CRMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 1
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: retries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger.Named("crm"),
	}
}

// Submit posts the booking. Transport errors and 5xx answers are retried
// with exponential backoff; 4xx answers are returned as rejected bookings.
func (c *Client) Submit(ctx context.Context, req booking.Request) (booking.Result, error) {
	body, err := json.Marshal(toWire(req))
	if err != nil {
		return booking.Result{}, fmt.Errorf("marshal booking: %w", err)
	}
	requestID := uuid.NewString()

	attempt := 0
	operation := func() (booking.Result, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return booking.Result{}, backoff.Permanent(err)
		}
		result, err := c.post(ctx, requestID, body)
		if err != nil {
			c.logger.Warn("booking submission attempt failed",
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return result, err
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries),
	)
	if err != nil {
		var rejected *rejectedError
		if errors.As(err, &rejected) {
			return booking.Result{Success: false, Error: rejected.message}, nil
		}
		return booking.Result{}, err
	}
	return result, nil
}

// rejectedError marks a 4xx answer, which is final.
type rejectedError struct {
	status  int
	message string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("CRM rejected booking (%d): %s", e.status, e.message)
}

func (c *Client) post(ctx context.Context, requestID string, body []byte) (booking.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bookingPath, bytes.NewReader(body))
	if err != nil {
		return booking.Result{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("RqUID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return booking.Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return booking.Result{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return booking.Result{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return booking.Result{}, backoff.Permanent(&rejectedError{status: resp.StatusCode, message: rejectionMessage(payload)})
	}

	var decoded wireResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return booking.Result{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if !decoded.Success {
		return booking.Result{Success: false, Error: decoded.Error}, nil
	}
	if decoded.BookingID == "" {
		decoded.BookingID = requestID
	}
	return booking.Result{Success: true, BookingID: decoded.BookingID}, nil
}

func rejectionMessage(payload []byte) string {
	var decoded wireResponse
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Error != "" {
		return decoded.Error
	}
	return string(bytes.TrimSpace(payload))
}

func toWire(req booking.Request) wireRequest {
	w := wireRequest{
		CheckInDate:  atCheckIn(req.CheckIn).Format(wireDateLayout),
		CheckOutDate: atCheckIn(req.CheckOut).Format(wireDateLayout),
		Adult:        req.GuestCount,
	}
	if field.IsEmail(req.Contact) {
		w.Email = req.Contact
	} else {
		w.Phone = req.Contact
	}
	return w
}

func atCheckIn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), checkInHour, 0, 0, 0, day.Location())
}
