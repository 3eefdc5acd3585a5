package dialog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dialogModel "github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/model/persona"
	dialogService "github.com/zhouzirui/sanatorium/backend/internal/service/dialog"
	"github.com/zhouzirui/sanatorium/backend/pkg/utils"
)

// Handler 对话服务的HTTP处理器
type Handler struct {
	dialogSvc *dialogService.Service
	personas  persona.Store
	logger    *zap.Logger
}

// New 创建对话处理器
func New(dialogSvc *dialogService.Service, personas persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dialogSvc: dialogSvc,
		personas:  personas,
		logger:    logger.Named("dialog"),
	}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/dialog/sessions", h.handleCreateSession)
	r.Get("/dialog/{sessionID}", h.handleGetSession)
	r.Post("/dialog/{sessionID}/messages", h.handleMessage)
	r.Post("/dialog/{sessionID}/reset", h.handleReset)
}

type createSessionResponse struct {
	SessionID string            `json:"sessionId"`
	Stage     dialogModel.Stage `json:"stage"`
	Greeting  string            `json:"greeting"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Context  dialogModel.Response `json:"context"`
	Reply    string               `json:"reply"`
	Degraded bool                 `json:"degraded,omitempty"`
	Replaced bool                 `json:"replaced,omitempty"`
}

// sessionView is the public shape of a session snapshot.
type sessionView struct {
	*dialogModel.Session
	SuspendedFrames int `json:"suspendedFrames"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.dialogSvc.CreateSession(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		Stage:     session.Stage,
		Greeting:  h.personas.Default().Greeting(),
	})
}

// handleGetSession 查询会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.dialogSvc.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionView{Session: session, SuspendedFrames: session.Stack.Len()})
}

// handleMessage 处理一轮用户输入
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := h.dialogSvc.Reply(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, messageResponse{
		Context:  reply.Response,
		Reply:    reply.Text,
		Degraded: reply.Degraded,
		Replaced: reply.Replaced,
	})
}

// handleReset 显式重置会话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	session, err := h.dialogSvc.Reset(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionView{Session: session, SuspendedFrames: session.Stack.Len()})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, dialogService.ErrSessionRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.RespondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("dialog request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
