package crm

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/model/booking"
)

// MemoryBackend accepts every booking and keeps it in memory. It stands in
// for the CRM when none is configured.
type MemoryBackend struct {
	mu       sync.RWMutex
	bookings map[string]booking.Request
	logger   *zap.Logger
}

func NewMemoryBackend(logger *zap.Logger) *MemoryBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBackend{
		bookings: make(map[string]booking.Request),
		logger:   logger.Named("crm.memory"),
	}
}

func (m *MemoryBackend) Submit(ctx context.Context, req booking.Request) (booking.Result, error) {
	if err := ctx.Err(); err != nil {
		return booking.Result{}, err
	}

	id := "BK-" + strings.ToUpper(uuid.NewString()[:8])

	m.mu.Lock()
	m.bookings[id] = req
	m.mu.Unlock()

	m.logger.Info("booking stored", zap.String("booking_id", id), zap.Int("guests", req.GuestCount))
	return booking.Result{Success: true, BookingID: id}, nil
}

// Get returns a stored booking.
func (m *MemoryBackend) Get(id string) (booking.Request, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.bookings[id]
	return req, ok
}

func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings)
}
