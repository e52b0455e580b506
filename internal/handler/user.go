package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"user": model.UserFromContext(r.Context())})
}

// selfID parses the {id} URL parameter and checks it names the caller.
func selfID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user ID", model.ErrValidation)
	}
	if user := model.UserFromContext(r.Context()); user == nil || user.ID != id {
		return 0, fmt.Errorf("%w: users may only change their own account", model.ErrForbidden)
	}
	return id, nil
}

// writeUserError reports a missing user with a user-specific message.
func writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrNotFound) {
		writeErrorMsg(w, r, err, http.StatusNotFound, "ErrUserNotFound")
		return
	}
	writeError(w, r, err)
}

type updateUserRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=64"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Resume   string `json:"resume" validate:"omitempty,max=20000"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := selfID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var upd store.UserUpdate
	if req.Username != "" {
		upd.Username = &req.Username
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, r, fmt.Errorf("hash password: %w", err))
			return
		}
		hashed := string(hash)
		upd.PasswordHash = &hashed
	}
	if req.Resume != "" {
		upd.Resume = &req.Resume
	}
	if upd.Username == nil && upd.PasswordHash == nil && upd.Resume == nil {
		writeError(w, r, fmt.Errorf("%w: no valid fields provided for update", model.ErrValidation))
		return
	}

	if err := h.store.UpdateUser(r.Context(), id, upd); err != nil {
		writeUserError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, fmt.Errorf("reload user: %w", err))
		return
	}
	LoggerFrom(r).Info("user updated", "user_id", id)
	writeOK(w, map[string]any{"message": i18n.T(r.Context(), "UserUpdated"), "user": user})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := selfID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		writeUserError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"message": i18n.T(r.Context(), "UserDeleted")})
}
