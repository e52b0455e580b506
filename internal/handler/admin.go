package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewer/internal/model"
)

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("list users: %w", err))
		return
	}
	writeOK(w, map[string]any{"users": users})
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role" validate:"omitempty,oneof=candidate admin"`
	Resume      string `json:"resume" validate:"max=20000"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	id, err := h.store.CreateUser(r.Context(), model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         model.UserRole(req.Role),
		Resume:       req.Resume,
		Active:       true,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, fmt.Errorf("reload user: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid user ID", model.ErrValidation))
		return
	}
	if admin := model.UserFromContext(r.Context()); admin != nil && admin.ID == id {
		writeError(w, r, fmt.Errorf("%w: admins cannot deactivate themselves", model.ErrConflict))
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		writeUserError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, fmt.Errorf("reload user: %w", err))
		return
	}
	LoggerFrom(r).Info("toggled user active", "user_id", id, "active", user.Active)
	writeOK(w, map[string]any{"user": user})
}

// handleExport returns every session with its owner, optionally limited to
// one round type via ?type=.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	round := model.RoundType(strings.ToUpper(r.URL.Query().Get("type")))
	if round != "" && !round.Valid() {
		writeError(w, r, fmt.Errorf("%w: unknown interview type %q", model.ErrValidation, round))
		return
	}
	results, err := h.store.ExportInterviews(r.Context(), round)
	if err != nil {
		writeError(w, r, fmt.Errorf("export interviews: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, model.InterviewExport{
		ExportedAt: time.Now().UTC(),
		RoundType:  round,
		Count:      len(results),
		Interviews: results,
	})
}
