package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/chat"
	"github.com/bytebuddy/bytebuddy/internal/completion"
	"github.com/bytebuddy/bytebuddy/internal/conversation"
	"github.com/bytebuddy/bytebuddy/internal/events"
	"github.com/bytebuddy/bytebuddy/internal/handler/dto"
	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/middleware"
	"github.com/bytebuddy/bytebuddy/internal/service"
	boltstore "github.com/bytebuddy/bytebuddy/internal/store/bolt"
)

var fastParams = auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type fakeProvider struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (p *fakeProvider) Complete(_ context.Context, _ completion.Request) (completion.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return completion.Response{}, p.err
	}
	return completion.Response{Text: p.text}, nil
}

func (p *fakeProvider) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type testApp struct {
	router   http.Handler
	hub      *events.Hub
	registry *conversation.Registry
	chat     *chat.Manager
	provider *fakeProvider
	metrics  *metrics.InMemoryRecorder
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := boltstore.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	app := &testApp{
		hub:      events.NewHub(logger, events.DefaultBuffer),
		provider: &fakeProvider{text: "Drink water."},
		metrics:  metrics.NewInMemory(),
	}
	app.registry = conversation.NewRegistry(st, conversation.Options{
		Notifier: app.hub,
		Metrics:  app.metrics,
		Logger:   logger,
		Backoff:  []time.Duration{},
	})

	completionService := completion.NewService(app.provider, app.metrics, logger)
	app.chat = chat.NewManager(chat.Config{
		Completer: completionService,
		Notifier:  app.hub,
		Metrics:   app.metrics,
		Logger:    logger,
	})
	t.Cleanup(app.chat.Wait)

	sessions := service.NewSessionService(service.SessionConfig{
		Store:            st,
		Tokens:           auth.NewTokens([]byte("test-signing-key-0123456789abcdef"), time.Hour),
		Hasher:           auth.NewHasher(fastParams),
		Metrics:          app.metrics,
		Logger:           logger,
		ReturnResetCodes: true,
		OnSignOut: func(identityID string) {
			app.registry.Drop(identityID)
			app.chat.Drop(identityID)
		},
	})

	authHandler := NewAuthHandler(sessions, app.registry, logger)
	convHandler := NewConversationHandler(app.registry, app.chat, logger)
	wellnessHandler := NewWellnessHandler(completionService, logger)
	eventsHandler := NewEventsHandler(app.hub, nil, logger)

	r := chi.NewRouter()
	r.Get("/metrics", NewMetricsHandler(app.metrics).Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/session", authHandler.Session)
			r.Post("/signout", authHandler.SignOut)
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/password-reset", authHandler.RequestPasswordReset)
			r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(middleware.AuthConfig{Logger: logger, Sessions: sessions}))
			r.Get("/conversations", convHandler.List)
			r.Post("/conversations", convHandler.Create)
			r.Get("/conversations/{id}", convHandler.Get)
			r.Patch("/conversations/{id}", convHandler.UpdateTitle)
			r.Delete("/conversations/{id}", convHandler.Delete)
			r.Post("/conversations/{id}/messages", convHandler.SendMessage)
			r.Post("/wellness/bmi", wellnessHandler.BMI)
			r.Post("/wellness/dietary-plan", wellnessHandler.DietaryPlan)
			r.Post("/wellness/food-analysis", wellnessHandler.FoodAnalysis)
			r.Get("/events", eventsHandler.Stream)
		})
	})
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	app.router = r
	return app
}

// do sends a request with an optional bearer token and JSON body.
func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// signUp registers an identity and returns its session.
func (a *testApp) signUp(t *testing.T, email string) dto.SessionResponse {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/v1/auth/signup", "", dto.SignUpRequest{
		Name:     "Test User",
		Email:    email,
		Password: "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.SessionResponse
	decode(t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) dto.ErrorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var resp dto.ErrorResponse
	decode(t, rec, &resp)
	if resp.Code != code {
		t.Fatalf("expected code %s, got %s", code, resp.Code)
	}
	return resp
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/nonexistent", "", nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, http.MethodPut, "/api/v1/auth/signin", "", nil)
	requireError(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/signup", "", "{not json")
	requireError(t, rec, http.StatusBadRequest, "INVALID_JSON")
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	t.Parallel()

	h := middleware.MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]string
		if decodeJSON(w, r, &v) {
			w.WriteHeader(http.StatusOK)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"field":"`+strings.Repeat("x", 64)+`"}`))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	requireError(t, rec, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
}

func TestMetrics_Exposition(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	app.signUp(t, "metrics@example.com")

	rec := app.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"bytebuddy_signups_total 1\n",
		"bytebuddy_signins_total{outcome=\"failure\"} 0\n",
		"bytebuddy_conversations_created_total 0\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestMetrics_Unavailable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
