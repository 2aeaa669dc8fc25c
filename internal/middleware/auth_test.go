package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/service"
)

var _ SessionRestorer = (*fakeRestorer)(nil)

func TestRequireSession(t *testing.T) {
	t.Parallel()

	session := &auth.Session{Identity: model.Identity{ID: "id-1", Email: "jane@example.com"}}

	tests := []struct {
		name       string
		restorer   *fakeRestorer
		header     string
		target     string
		wantStatus int
		wantCode   string
		wantToken  string
	}{
		{"bearer", &fakeRestorer{session: session}, "Bearer tok-1", "/x", http.StatusOK, "", "tok-1"},
		{"query_param", &fakeRestorer{session: session}, "", "/x?access_token=tok-2", http.StatusOK, "", "tok-2"},
		{"missing", &fakeRestorer{session: session}, "", "/x", http.StatusUnauthorized, "UNAUTHENTICATED", ""},
		{"wrong_scheme", &fakeRestorer{session: session}, "Basic abc", "/x?access_token=tok-3", http.StatusUnauthorized, "UNAUTHENTICATED", ""},
		{"rejected", &fakeRestorer{err: service.ErrUnauthenticated}, "Bearer bad", "/x", http.StatusUnauthorized, "UNAUTHENTICATED", "bad"},
		{"store_down", &fakeRestorer{err: errors.New("bolt: timeout")}, "Bearer tok", "/x", http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *auth.Session
			handler := RequireSession(AuthConfig{
				Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
				Sessions: tt.restorer,
			})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = auth.SessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if seen == nil || seen.Identity.ID != "id-1" {
					t.Errorf("session not in context: %+v", seen)
				}
			} else {
				var body errorBody
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
			}

			if tt.wantToken == "" {
				if len(tt.restorer.tokens) != 0 {
					t.Errorf("restorer called with %v", tt.restorer.tokens)
				}
			} else if len(tt.restorer.tokens) != 1 || tt.restorer.tokens[0] != tt.wantToken {
				t.Errorf("restorer tokens = %v, want [%s]", tt.restorer.tokens, tt.wantToken)
			}
		})
	}
}
