package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authservice "github.com/markdave123/contexta/backend/internal/service/auth"
	"github.com/markdave123/contexta/backend/internal/store"
	"github.com/markdave123/contexta/backend/pkg/utils"
)

// Handler 认证相关的HTTP处理器
type Handler struct {
	auth *authservice.Service
}

// New 创建认证处理器
func New(auth *authservice.Service) *Handler {
	return &Handler{auth: auth}
}

// RegisterRoutes 注册认证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/otp/request", h.handleRequestOTP)
	r.Post("/auth/otp/verify", h.handleVerifyOTP)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email       string `json:"email"`
		Name        string `json:"name"`
		DateOfBirth string `json:"dateOfBirth"`
		Phone       string `json:"phone"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.auth.Register(r.Context(), payload.Email, payload.Name, payload.DateOfBirth, payload.Phone, payload.Password)
	if err != nil {
		utils.RespondError(w, registerStatus(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.auth.Resolve(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, authservice.ErrBadCredentials) {
			utils.RespondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"userId": userID})
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Phone == "" {
		utils.RespondError(w, http.StatusBadRequest, "phone is required")
		return
	}

	if err := h.auth.RequestOTP(r.Context(), payload.Phone); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.VerifyOTP(r.Context(), payload.Phone, payload.Code); err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func registerStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrEmailTaken), errors.Is(err, store.ErrPhoneTaken):
		return http.StatusConflict
	case errors.Is(err, authservice.ErrInvalidEmail), errors.Is(err, authservice.ErrWeakPassword):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
