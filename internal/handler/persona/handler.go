package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/sanatorium/backend/internal/model/persona"
	"github.com/zhouzirui/sanatorium/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleDefaultPersona)
	r.Get("/personas", h.handleListPersonas)
}

type personaView struct {
	persona.Persona
	Greeting string `json:"greeting"`
}

// handleDefaultPersona 返回当前助手角色及问候语
func (h *Handler) handleDefaultPersona(w http.ResponseWriter, r *http.Request) {
	p := h.personas.Default()
	utils.RespondJSON(w, http.StatusOK, personaView{Persona: p, Greeting: p.Greeting()})
}

// handleListPersonas 列出所有persona
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}
