package document

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123/contexta/backend/internal/service/retrieval"
	"github.com/markdave123/contexta/backend/pkg/utils"
)

// Handler 参考资料上传的HTTP处理器
type Handler struct {
	retriever *retrieval.Service
}

// New 创建文档处理器
func New(retriever *retrieval.Service) *Handler {
	return &Handler{retriever: retriever}
}

// RegisterRoutes 注册文档相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/documents", h.handleIngest)
}

type ingestRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// handleIngest chunks the submitted text and adds it to the retrieval
// corpus.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Source == "" {
		payload.Source = "upload"
	}

	count, err := h.retriever.Ingest(r.Context(), payload.Source, payload.Text)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyDocument) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"source": payload.Source,
		"chunks": count,
	})
}
