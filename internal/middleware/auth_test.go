package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hitoshi/healthtrack/internal/auth"
)

const (
	testSecret  = "middleware-test-secret-32-bytes-long!"
	otherSecret = "a-completely-different-secret-32-bytes"
)

func newIssuer(t *testing.T, secret string, ttl time.Duration) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(secret, ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	return issuer
}

func issueToken(t *testing.T, issuer *auth.TokenIssuer, userID string) string {
	t.Helper()
	token, _, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

// sideEffectHandler は呼ばれたかどうかとユーザーIDを記録するハンドラー。
type sideEffectHandler struct {
	called bool
	userID string
}

func (h *sideEffectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, _ = UserIDFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

// ヘッダーなしは401で、ハンドラーは実行されない
func TestAuthMiddleware_MissingHeader_Returns401WithoutSideEffects(t *testing.T) {
	issuer := newIssuer(t, testSecret, time.Hour)
	next := &sideEffectHandler{}
	handler := NewAuthMiddleware(issuer, nil)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/bloodpressure", bytes.NewBufferString(`{"systolic":120,"diastolic":80}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if next.called {
		t.Error("handler must not run without an Authorization header")
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", body.Code)
	}
}

// 別の秘密鍵・期限切れ・形式不正のトークンは403
func TestAuthMiddleware_InvalidTokens_Return403(t *testing.T) {
	issuer := newIssuer(t, testSecret, time.Hour)
	foreign := newIssuer(t, otherSecret, time.Hour)
	expired := newIssuer(t, testSecret, time.Nanosecond)
	expiredToken := issueToken(t, expired, "user-1")
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name   string
		header string
	}{
		{"signed with another secret", "Bearer " + issueToken(t, foreign, "user-1")},
		{"expired token", "Bearer " + expiredToken},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &sideEffectHandler{}
			handler := NewAuthMiddleware(issuer, nil)(next)

			req := httptest.NewRequest(http.MethodGet, "/api/spo2", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			if next.called {
				t.Error("handler must not run for an invalid token")
			}
		})
	}
}

func TestAuthMiddleware_ValidToken_InjectsUserID(t *testing.T) {
	issuer := newIssuer(t, testSecret, time.Hour)
	next := &sideEffectHandler{}
	handler := NewAuthMiddleware(issuer, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/weight", nil)
	req.Header.Set("Authorization", "bearer "+issueToken(t, issuer, "user-42"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if next.userID != "user-42" {
		t.Errorf("userID = %q, want user-42", next.userID)
	}
}

// 通常のAPIはクエリのtokenを受け付けない
func TestAuthMiddleware_IgnoresQueryToken(t *testing.T) {
	issuer := newIssuer(t, testSecret, time.Hour)
	next := &sideEffectHandler{}
	handler := NewAuthMiddleware(issuer, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/weight?token="+issueToken(t, issuer, "user-1"), nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRealtimeAuthMiddleware_AcceptsQueryToken(t *testing.T) {
	issuer := newIssuer(t, testSecret, time.Hour)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid query token", "?token=" + issueToken(t, issuer, "user-7"), http.StatusOK},
		{"invalid query token", "?token=bogus", http.StatusForbidden},
		{"no token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &sideEffectHandler{}
			handler := NewRealtimeAuthMiddleware(issuer, nil)(next)

			req := httptest.NewRequest(http.MethodGet, "/api/realtime"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && next.userID != "user-7" {
				t.Errorf("userID = %q, want user-7", next.userID)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
