package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/handler/dialog"
	"github.com/zhouzirui/sanatorium/backend/internal/handler/persona"
	"github.com/zhouzirui/sanatorium/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/sanatorium/backend/internal/middleware"
	personaModel "github.com/zhouzirui/sanatorium/backend/internal/model/persona"
	"github.com/zhouzirui/sanatorium/backend/internal/observability"
	dialogService "github.com/zhouzirui/sanatorium/backend/internal/service/dialog"
	"github.com/zhouzirui/sanatorium/backend/pkg/utils"
)

// Deps are the services the HTTP layer needs.
type Deps struct {
	Dialog      *dialogService.Service
	Personas    personaModel.Store
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	RateLimiter *middlewarePkg.RateLimiter
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger, deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Dialog.Store().Len(),
		})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	personaHandler := persona.New(deps.Personas)
	dialogHandler := dialog.New(deps.Dialog, deps.Personas, logger)
	wsHandler := dialog.NewWebSocketHandler(deps.Dialog, deps.Personas, logger)
	streamHandler := stream.New(deps.Dialog, logger)

	r.Route("/api", func(api chi.Router) {
		if deps.RateLimiter != nil {
			api.Use(deps.RateLimiter.Middleware)
		}

		personaHandler.RegisterRoutes(api)
		dialogHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
