// Package service provides the session business logic: sign-up, sign-in,
// sign-out, password reset and session restore.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/mailer"
	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// Service errors.
var (
	ErrInvalidInput       = errors.New("name, email and password are required")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
	ErrUnauthenticated    = errors.New("not authenticated")

	// ErrInvalidEmail is a kind of ErrInvalidInput.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email address", ErrInvalidInput)
)

// User-facing messages.
const (
	MsgSignUpOK         = "Signup successful!"
	MsgSignInOK         = "Login successful!"
	MsgSignOutOK        = "Signed out."
	MsgResetCodeSent    = "Verification code sent."
	MsgPasswordResetOK  = "Your password has been reset successfully."
	MsgInvalidInput     = "Name, email and password are required."
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgPasswordTooShort = "Password must be at least 6 characters long."
	MsgEmailTaken       = "An account with this email already exists."
	MsgBadCredentials   = "Invalid email or password."
	MsgAccountNotFound  = "No account found with that email address."
	MsgInvalidResetCode = "Invalid or expired verification code."
	MsgUnauthenticated  = "Please sign in to continue."
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Message returns the user-facing text for a service error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return MsgInvalidEmail
	case errors.Is(err, ErrInvalidInput):
		return MsgInvalidInput
	case errors.Is(err, ErrPasswordTooShort):
		return MsgPasswordTooShort
	case errors.Is(err, ErrEmailTaken):
		return MsgEmailTaken
	case errors.Is(err, ErrInvalidCredentials):
		return MsgBadCredentials
	case errors.Is(err, ErrAccountNotFound):
		return MsgAccountNotFound
	case errors.Is(err, ErrInvalidResetCode):
		return MsgInvalidResetCode
	case errors.Is(err, ErrUnauthenticated):
		return MsgUnauthenticated
	default:
		return "Something went wrong. Please try again."
	}
}

// Result is the outcome of a successful session operation.
type Result struct {
	Message   string
	Identity  *model.Identity
	Token     string
	ExpiresAt time.Time
	// Code is only set when demo reset codes are enabled.
	Code string
}

// SessionStore is the persistence the session service needs.
type SessionStore interface {
	store.UserStore
	store.ResetCodeStore
	store.SessionRevoker
}

// SessionConfig wires a SessionService.
type SessionConfig struct {
	Store            SessionStore
	Tokens           *auth.Tokens
	Hasher           *auth.Hasher
	Mailer           mailer.Mailer
	Metrics          metrics.Recorder
	Logger           *slog.Logger
	ReturnResetCodes bool
	// CodeSource and Now default to auth.GenerateResetCode and time.Now.
	CodeSource auth.CodeSource
	Now        func() time.Time
	// OnSignOut is called with the identity id after a session ends.
	OnSignOut func(identityID string)
}

// SessionService owns identity and session lifecycle.
type SessionService struct {
	store       SessionStore
	tokens      *auth.Tokens
	hasher      *auth.Hasher
	mailer      mailer.Mailer
	metrics     metrics.Recorder
	logger      *slog.Logger
	returnCodes bool
	codes       auth.CodeSource
	now         func() time.Time
	onSignOut   func(identityID string)
}

// NewSessionService creates a new SessionService.
func NewSessionService(cfg SessionConfig) *SessionService {
	s := &SessionService{
		store:       cfg.Store,
		tokens:      cfg.Tokens,
		hasher:      cfg.Hasher,
		mailer:      cfg.Mailer,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		returnCodes: cfg.ReturnResetCodes,
		codes:       cfg.CodeSource,
		now:         cfg.Now,
		onSignOut:   cfg.OnSignOut,
	}
	if s.hasher == nil {
		s.hasher = auth.NewHasher(auth.DefaultParams)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "session"))
	if s.mailer == nil {
		s.mailer = mailer.NewLogMailer(s.logger)
	}
	if s.codes == nil {
		s.codes = auth.GenerateResetCode
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SignUp registers a new identity and starts a session for it.
func (s *SessionService) SignUp(ctx context.Context, name, email, password string) (*Result, error) {
	name = strings.TrimSpace(name)
	email = model.NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	switch _, err := s.store.GetUserByEmail(ctx, email); {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, store.ErrUserNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	cred := &model.Credential{
		Identity:     model.Identity{ID: model.NewIdentityID(), Name: name, Email: email},
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, cred); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncSignUp()
	s.logger.Info("identity registered", slog.String("identity_id", cred.ID))

	return s.startSession(cred.Identity, MsgSignUpOK)
}

// SignIn verifies credentials and starts a new session. Unknown emails and
// wrong passwords fail identically.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*Result, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.IncSignIn(metrics.OutcomeFailure)
		return nil, ErrInvalidCredentials
	}

	cred, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.metrics.IncSignIn(metrics.OutcomeFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := s.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable",
			slog.String("identity_id", cred.ID),
			slog.String("error", err.Error()),
		)
	}
	if !ok {
		s.metrics.IncSignIn(metrics.OutcomeFailure)
		return nil, ErrInvalidCredentials
	}

	s.metrics.IncSignIn(metrics.OutcomeSuccess)
	return s.startSession(cred.Identity, MsgSignInOK)
}

// SignOut revokes the token until it would have expired anyway. It succeeds
// for unknown, expired and already revoked tokens.
func (s *SessionService) SignOut(ctx context.Context, token string) (*Result, error) {
	claims, err := s.tokens.ParseUnverifiedExpiry(token)
	if err != nil {
		return &Result{Message: MsgSignOutOK}, nil
	}

	if err := s.store.RevokeSession(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}
	if s.onSignOut != nil && claims.IdentityID != "" {
		s.onSignOut(claims.IdentityID)
	}
	return &Result{Message: MsgSignOutOK}, nil
}

// RequestPasswordReset issues a new reset code for email, replacing any
// previous one, and delivers it.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) (*Result, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}

	cred, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	code, err := s.codes()
	if err != nil {
		return nil, err
	}
	rc := model.ResetCode{
		Email:     cred.Email,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(model.ResetCodeTTL),
	}
	if err := s.store.PutResetCode(ctx, rc); err != nil {
		return nil, fmt.Errorf("failed to store reset code: %w", err)
	}

	err = s.mailer.SendResetCode(ctx, mailer.ResetCodeMessage{
		To:        cred.Email,
		Name:      cred.Name,
		Code:      code,
		ExpiresAt: rc.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("reset code delivery failed",
			slog.String("identity_id", cred.ID),
			slog.String("error", err.Error()),
		)
		if !s.returnCodes {
			return nil, fmt.Errorf("failed to deliver reset code: %w", err)
		}
	}

	s.metrics.IncPasswordResetRequested()

	res := &Result{Message: MsgResetCodeSent, ExpiresAt: rc.ExpiresAt}
	if s.returnCodes {
		res.Code = code
	}
	return res, nil
}

// ResetPassword replaces the password when code matches the active,
// unexpired code for email. The code is consumed on success.
func (s *SessionService) ResetPassword(ctx context.Context, email, code, newPassword string) (*Result, error) {
	email = model.NormalizeEmail(email)

	rc, err := s.store.GetResetCode(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrResetCodeNotFound) {
			return nil, ErrInvalidResetCode
		}
		return nil, fmt.Errorf("failed to get reset code: %w", err)
	}
	if !auth.CodesEqual(strings.TrimSpace(code), rc.Code) || rc.Expired(s.now()) {
		return nil, ErrInvalidResetCode
	}

	if len([]rune(newPassword)) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	cred, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, cred.ID, hash); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.store.DeleteResetCode(ctx, email); err != nil {
		s.logger.Warn("failed to delete used reset code",
			slog.String("identity_id", cred.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.IncPasswordResetCompleted()
	s.logger.Info("password reset", slog.String("identity_id", cred.ID))

	return &Result{Message: MsgPasswordResetOK}, nil
}

// Restore resolves a token back to its session. A token whose identity no
// longer exists is revoked and rejected.
func (s *SessionService) Restore(ctx context.Context, token string) (*auth.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	revoked, err := s.store.IsSessionRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}

	cred, err := s.store.GetUserByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			if rerr := s.store.RevokeSession(ctx, claims.TokenID, claims.ExpiresAt); rerr != nil {
				s.logger.Warn("failed to revoke orphaned session", slog.String("error", rerr.Error()))
			}
			if s.onSignOut != nil {
				s.onSignOut(claims.IdentityID)
			}
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	return &auth.Session{
		Identity:  cred.Identity,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (s *SessionService) startSession(id model.Identity, msg string) (*Result, error) {
	token, claims, err := s.tokens.Issue(id.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &Result{
		Message:   msg,
		Identity:  &id,
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}
