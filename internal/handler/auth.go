package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/model"
)

const sessionCookieName = "session"

// tokenFromRequest returns the bearer token, falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// requireAuth resolves the caller from a bearer token or session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, r, fmt.Errorf("%w: no credentials", model.ErrUnauthorized))
			return
		}
		user, err := h.store.UserForToken(r.Context(), token)
		if err != nil {
			writeError(w, r, fmt.Errorf("resolve auth token: %w", err))
			return
		}
		if user == nil {
			writeError(w, r, fmt.Errorf("%w: unknown or expired token", model.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), user)))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, r, model.ErrUnauthorized)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, fmt.Errorf("%w: role %q", model.ErrForbidden, user.Role))
		})
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, r, fmt.Errorf("get user: %w", err))
		return
	}
	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeErrorMsg(w, r, fmt.Errorf("%w: bad credentials for %q", model.ErrUnauthorized, req.Username),
			http.StatusUnauthorized, "ErrLogin")
		return
	}

	token, err := h.startSession(w, r, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	LoggerFrom(r).Info("user logged in", "user_id", user.ID)
	writeOK(w, map[string]any{"token": token, "user": user})
}

// startSession issues an auth token for userID and sets it as the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, userID int64) (string, error) {
	token, err := h.store.CreateAuthSession(r.Context(), userID)
	if err != nil {
		return "", fmt.Errorf("create auth session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	return token, nil
}

type signupRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Gender          string `json:"gender" validate:"required,oneof=male female"`
}

// handleSignup registers an active candidate and logs them in.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	id, err := h.store.CreateUser(r.Context(), model.User{
		Username:     req.Username,
		DisplayName:  req.Username,
		PasswordHash: string(hash),
		Role:         model.UserRoleCandidate,
		Email:        strings.TrimSpace(req.Email),
		Gender:       req.Gender,
		Active:       true,
	})
	if errors.Is(err, model.ErrConflict) {
		writeErrorMsg(w, r, err, http.StatusConflict, "ErrUsernameTaken")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, fmt.Errorf("reload user: %w", err))
		return
	}

	token, err := h.startSession(w, r, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	LoggerFrom(r).Info("user signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "token": token, "user": user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromRequest(r); token != "" {
		if err := h.store.DeleteAuthSession(r.Context(), token); err != nil {
			LoggerFrom(r).Warn("failed to delete auth session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	writeOK(w, map[string]any{"message": i18n.T(r.Context(), "LoggedOut")})
}
