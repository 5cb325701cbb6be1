package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	chatservice "github.com/markdave123/contexta/backend/internal/service/chat"
	"github.com/markdave123/contexta/backend/internal/service/export"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
	"github.com/markdave123/contexta/backend/internal/service/reply"
	"github.com/markdave123/contexta/backend/internal/service/share"
	"github.com/markdave123/contexta/backend/internal/store"
	"github.com/markdave123/contexta/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	sessions *chatservice.Service
	pipeline *reply.Pipeline
	exporter *export.Service
	qr       *share.Service
}

// New 创建聊天处理器
func New(sessions *chatservice.Service, pipeline *reply.Pipeline, exporter *export.Service, qr *share.Service) *Handler {
	return &Handler{
		sessions: sessions,
		pipeline: pipeline,
		exporter: exporter,
		qr:       qr,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/{sessionID}/history", h.handleHistory)
	r.Get("/chat/{sessionID}/export", h.handleExport)
	r.Get("/chat/{sessionID}/qr", h.handleQR)
}

type chatRequest struct {
	SessionID string  `json:"sessionId"`
	UserID    *string `json:"userId,omitempty"`
	Message   string  `json:"message"`
}

type chatResponse struct {
	SessionID string    `json:"sessionId"`
	Run       reply.Run `json:"run"`
}

// handleChat runs one request/response cycle. An absent sessionId starts a
// fresh session.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = uuid.NewString()
	}

	run, err := h.pipeline.Handle(r.Context(), payload.SessionID, payload.UserID, payload.Message)
	if err != nil {
		utils.RespondJSON(w, statusFor(err), map[string]any{
			"error": err.Error(),
			"run":   run,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{SessionID: payload.SessionID, Run: run})
}

// handleHistory returns the full transcript, oldest first.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.sessions.Transcript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"turns":     turns,
	})
}

// handleExport streams the transcript as an xlsx workbook.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcript-"+sessionID+".xlsx"))

	if err := h.exporter.WriteXLSX(r.Context(), sessionID, w); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
	}
}

// handleQR returns a PNG QR code with the session resume link.
func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	png, err := h.qr.SessionQR(sessionID, 256)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chatservice.ErrSessionOwnership):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNoTurns):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, store.ErrEmptyMessage),
		errors.Is(err, store.ErrUnknownUser),
		errors.Is(err, chatservice.ErrSessionRequired):
		return http.StatusBadRequest
	case errors.Is(err, prompt.ErrBudgetTooSmall):
		return http.StatusInternalServerError
	case errors.Is(err, reply.ErrModelCall):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
