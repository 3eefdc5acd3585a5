package dialog

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/model/persona"
	dialogService "github.com/zhouzirui/sanatorium/backend/internal/service/dialog"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingPeriod   = 54 * time.Second
)

// WebSocketHandler WebSocket对话处理器，每条文本消息对应一轮对话
type WebSocketHandler struct {
	dialogSvc *dialogService.Service
	personas  persona.Store
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(dialogSvc *dialogService.Service, personas persona.Store, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		dialogSvc: dialogSvc,
		personas:  personas,
		logger:    logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dialog/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsWriter serializes writes; gorilla connections allow one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg outgoingMessage) error {
	msg.Timestamp = time.Now().Unix()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(msg)
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("new connection", zap.String("session_id", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	writer := &wsWriter{conn: conn}
	go h.pingLoop(ctx, conn)

	session, _, err := h.dialogSvc.Store().GetOrCreate(ctx, sessionID)
	if err != nil {
		h.sendError(writer, sessionID, err.Error())
		return
	}
	h.send(writer, outgoingMessage{
		Type:      "connected",
		SessionID: sessionID,
		Data: map[string]any{
			"stage":    session.Stage,
			"greeting": h.personas.Default().Greeting(),
		},
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendError(writer, sessionID, "invalid message")
			continue
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(writer, sessionID, "session mismatch")
			continue
		}

		h.handleMessage(ctx, writer, sessionID, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, writer *wsWriter, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, writer, sessionID, msg.Data)
	case "reset":
		session, err := h.dialogSvc.Reset(ctx, sessionID)
		if err != nil {
			h.sendError(writer, sessionID, err.Error())
			return
		}
		h.send(writer, outgoingMessage{
			Type:      "reset",
			SessionID: sessionID,
			Data:      map[string]any{"stage": session.Stage},
		})
	default:
		h.sendError(writer, sessionID, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, writer *wsWriter, sessionID string, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil || strings.TrimSpace(text.Text) == "" {
		h.sendError(writer, sessionID, "invalid text payload")
		return
	}

	reply, err := h.dialogSvc.StreamReply(ctx, sessionID, text.Text, func(delta string) error {
		return writer.send(outgoingMessage{
			Type:      "delta",
			SessionID: sessionID,
			Data:      map[string]string{"content": delta},
		})
	})
	if err != nil {
		h.sendError(writer, sessionID, "turn failed")
		h.logger.Warn("turn failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	h.send(writer, outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data: messageResponse{
			Context:  reply.Response,
			Reply:    reply.Text,
			Degraded: reply.Degraded,
			Replaced: reply.Replaced,
		},
	})
}

func (h *WebSocketHandler) send(writer *wsWriter, msg outgoingMessage) {
	if err := writer.send(msg); err != nil {
		h.logger.Debug("write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(writer *wsWriter, sessionID, message string) {
	h.send(writer, outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"message": message},
	})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
