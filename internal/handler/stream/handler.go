package stream

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dialogModel "github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	dialogService "github.com/zhouzirui/sanatorium/backend/internal/service/dialog"
	"github.com/zhouzirui/sanatorium/backend/pkg/utils"
)

// Handler streams a dialog turn via Server-Sent Events
type Handler struct {
	dialogSvc *dialogService.Service
	logger    *zap.Logger
}

// New creates a new stream handler
func New(dialogSvc *dialogService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dialogSvc: dialogSvc,
		logger:    logger.Named("stream"),
	}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	SessionID string                `json:"sessionId,omitempty"`
	Content   string                `json:"content,omitempty"`
	Context   *dialogModel.Response `json:"context,omitempty"`
	Degraded  bool                  `json:"degraded,omitempty"`
	Replaced  bool                  `json:"replaced,omitempty"`
	Finished  bool                  `json:"finished,omitempty"`
	Error     string                `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	reply, err := h.dialogSvc.StreamReply(r.Context(), sessionID, userMessage, func(delta string) error {
		return utils.SendSSEEvent(w, flusher, "delta", StreamResponse{
			SessionID: sessionID,
			Content:   delta,
		})
	})
	if err != nil {
		h.logger.Warn("stream turn failed", zap.String("session_id", sessionID), zap.Error(err))
		msg := "turn failed"
		if errors.Is(err, dialogService.ErrSessionRequired) {
			msg = err.Error()
		}
		_ = utils.SendSSEEvent(w, flusher, "error", StreamResponse{SessionID: sessionID, Error: msg})
		return
	}

	if err := utils.SendSSEEvent(w, flusher, "message", StreamResponse{
		SessionID: sessionID,
		Content:   reply.Text,
		Context:   &reply.Response,
		Degraded:  reply.Degraded,
		Replaced:  reply.Replaced,
	}); err != nil {
		h.logger.Debug("send message event", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := utils.SendSSEEvent(w, flusher, "end", StreamResponse{
		SessionID: sessionID,
		Finished:  true,
	}); err != nil {
		h.logger.Debug("send end event", zap.String("session_id", sessionID), zap.Error(err))
	}
}
