package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/markdave123/contexta/backend/internal/handler/auth"
	chatHandler "github.com/markdave123/contexta/backend/internal/handler/chat"
	documentHandler "github.com/markdave123/contexta/backend/internal/handler/document"
	"github.com/markdave123/contexta/backend/internal/handler/live"
	"github.com/markdave123/contexta/backend/internal/handler/stream"
	middlewarePkg "github.com/markdave123/contexta/backend/internal/middleware"
	aiService "github.com/markdave123/contexta/backend/internal/service/ai"
	authService "github.com/markdave123/contexta/backend/internal/service/auth"
	chatService "github.com/markdave123/contexta/backend/internal/service/chat"
	"github.com/markdave123/contexta/backend/internal/service/export"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
	"github.com/markdave123/contexta/backend/internal/service/reply"
	retrievalService "github.com/markdave123/contexta/backend/internal/service/retrieval"
	"github.com/markdave123/contexta/backend/internal/service/share"
	"github.com/markdave123/contexta/backend/pkg/utils"
)

// Deps carries the services the router wires into handlers. AI may be nil
// when no model credentials are configured; the affected endpoints then
// answer 503.
type Deps struct {
	Sessions  *chatService.Service
	Auth      *authService.Service
	Pipeline  *reply.Pipeline
	Builder   *prompt.Builder
	Retriever *retrievalService.Service
	Exporter  *export.Service
	QR        *share.Service
	AI        *aiService.Service
	Budget    int
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	authH := authHandler.New(deps.Auth)
	chatH := chatHandler.New(deps.Sessions, deps.Pipeline, deps.Exporter, deps.QR)

	var retriever prompt.Retriever
	if deps.Retriever != nil {
		retriever = deps.Retriever
	}

	var streamH *stream.Handler
	if deps.AI != nil {
		streamH = stream.New(deps.AI, deps.Sessions, deps.Builder, retriever, deps.Budget)
	}

	r.Route("/api", func(api chi.Router) {
		authH.RegisterRoutes(api)
		chatH.RegisterRoutes(api)

		if deps.Retriever != nil {
			documentHandler.New(deps.Retriever).RegisterRoutes(api)
		}

		if deps.Pipeline != nil {
			liveH := live.New(deps.Pipeline)
			liveH.RegisterRoutes(api)
		}

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")
			var userID *string
			if v := r.URL.Query().Get("userId"); v != "" {
				userID = &v
			}

			if streamH == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamH.HandleStreamRequest(r.Context(), w, sessionID, userID, userMessage); err != nil {
				// The SSE stream already carried the error event; nothing
				// more to write here.
				return
			}
		})
	})

	return r
}
