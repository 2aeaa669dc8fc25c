package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/handler/dto"
	"github.com/bytebuddy/bytebuddy/internal/middleware"
	"github.com/bytebuddy/bytebuddy/internal/navigation"
	"github.com/bytebuddy/bytebuddy/internal/service"
)

// SessionService is the account lifecycle used by AuthHandler.
type SessionService interface {
	SignUp(ctx context.Context, name, email, password string) (*service.Result, error)
	SignIn(ctx context.Context, email, password string) (*service.Result, error)
	SignOut(ctx context.Context, token string) (*service.Result, error)
	RequestPasswordReset(ctx context.Context, email string) (*service.Result, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (*service.Result, error)
	Restore(ctx context.Context, token string) (*auth.Session, error)
}

// HistoryPeeker reports whether an identity's conversation list is loaded.
type HistoryPeeker interface {
	Loaded(identityID string) bool
}

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	sessions SessionService
	history  HistoryPeeker
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions SessionService, history HistoryPeeker, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		sessions: sessions,
		history:  history,
		logger:   logger.With(slog.String("component", "auth_handler")),
	}
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w,
		middleware.Field{Name: "name", Value: req.Name, Max: middleware.MaxNameLength},
		middleware.Field{Name: "email", Value: req.Email, Max: middleware.MaxEmailLength},
		middleware.Field{Name: "password", Value: req.Password, Max: middleware.MaxPasswordLength},
	) {
		return
	}

	res, err := h.sessions.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(res))
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w,
		middleware.Field{Name: "email", Value: req.Email, Max: middleware.MaxEmailLength},
		middleware.Field{Name: "password", Value: req.Password, Max: middleware.MaxPasswordLength},
	) {
		return
	}

	res, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(res))
}

// SignOut handles POST /api/v1/auth/signout. Signing out without a valid
// session still succeeds.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.SignOut(r.Context(), middleware.ExtractToken(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: res.Message})
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, middleware.Field{Name: "email", Value: req.Email, Max: middleware.MaxEmailLength}) {
		return
	}

	res, err := h.sessions.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PasswordResetResponse{Message: res.Message, Code: res.Code})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w,
		middleware.Field{Name: "email", Value: req.Email, Max: middleware.MaxEmailLength},
		middleware.Field{Name: "code", Value: req.Code, Max: 16},
		middleware.Field{Name: "new_password", Value: req.NewPassword, Max: middleware.MaxPasswordLength},
	) {
		return
	}

	res, err := h.sessions.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: res.Message})
}

// Session handles GET /api/v1/auth/session. It never fails with 401: a
// missing or invalid token reports the sign-in screen.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Restore(r.Context(), middleware.ExtractToken(r))
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			writeJSON(w, http.StatusOK, dto.SessionStateResponse{
				Screen: string(navigation.Gate(true, false, false)),
			})
			return
		}
		h.logger.Error("failed to restore session", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session service unavailable")
		return
	}

	loaded := h.history != nil && h.history.Loaded(sess.Identity.ID)
	expires := sess.ExpiresAt
	writeJSON(w, http.StatusOK, dto.SessionStateResponse{
		Authenticated: true,
		Screen:        string(navigation.Gate(true, true, loaded)),
		Identity:      &sess.Identity,
		ExpiresAt:     &expires,
	})
}

func sessionResponse(res *service.Result) dto.SessionResponse {
	return dto.SessionResponse{
		Message:   res.Message,
		Identity:  res.Identity,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, err error) {
	msg := service.Message(err)
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", msg)
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", msg)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", msg)
	case errors.Is(err, service.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", msg)
	case errors.Is(err, service.ErrInvalidResetCode):
		writeError(w, http.StatusBadRequest, "INVALID_RESET_CODE", msg)
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", msg)
	default:
		h.logger.Error("session operation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", msg)
	}
}
