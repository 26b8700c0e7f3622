package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hitoshi/healthtrack/internal/auth"
	"github.com/hitoshi/healthtrack/internal/middleware"
	"github.com/hitoshi/healthtrack/internal/model"
)

func testAuthResult() *auth.Result {
	return &auth.Result{
		User: &model.User{
			ID:    "user-1",
			Email: "alice@example.com",
			Name:  "Alice",
		},
		AccessToken: "signed.jwt.token",
		ExpiresAt:   time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response body: %v\nraw: %s", err, w.Body.String())
	}
}

func TestAuthHandler_SignUp_AcceptsBothTokenSpellings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"snake case", `{"id_token":"google-token"}`},
		{"camel case", `{"idToken":"google-token"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotToken string
			svc := &mockAuthService{
				signUpFn: func(ctx context.Context, rawIDToken string) (*auth.Result, error) {
					gotToken = rawIDToken
					return testAuthResult(), nil
				},
			}
			h := NewAuthHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/google/signup", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			h.SignUp(w, req)

			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
			}
			if gotToken != "google-token" {
				t.Errorf("token passed to service = %q, want %q", gotToken, "google-token")
			}

			var body authResponse
			decodeBody(t, w, &body)
			if body.Message != "Signed up successfully" {
				t.Errorf("message = %q", body.Message)
			}
			if body.AccessToken != "signed.jwt.token" {
				t.Errorf("accessToken = %q", body.AccessToken)
			}
			if body.User.Email != "alice@example.com" || body.User.ID != "user-1" {
				t.Errorf("user = %+v", body.User)
			}
		})
	}
}

func TestAuthHandler_SignUp_UserAlreadyExists_Returns400(t *testing.T) {
	svc := &mockAuthService{
		signUpFn: func(ctx context.Context, rawIDToken string) (*auth.Result, error) {
			return nil, model.NewUserAlreadyExistsError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google/signup", bytes.NewBufferString(`{"id_token":"t"}`))
	w := httptest.NewRecorder()

	h.SignUp(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	if body.Code != model.ErrCodeUserAlreadyExists {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUserAlreadyExists)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, rawIDToken string) (*auth.Result, error) {
			return testAuthResult(), nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google/login", bytes.NewBufferString(`{"idToken":"google-token"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body authResponse
	decodeBody(t, w, &body)
	if body.Message != "Logged in successfully" {
		t.Errorf("message = %q", body.Message)
	}
	if !body.ExpiresAt.Equal(testAuthResult().ExpiresAt) {
		t.Errorf("expiresAt = %v", body.ExpiresAt)
	}
}

func TestAuthHandler_Login_InvalidCredential_Returns400(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, rawIDToken string) (*auth.Result, error) {
			return nil, model.NewInvalidCredentialError("token expired")
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google/login", bytes.NewBufferString(`{"idToken":"expired"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	if body.Code != model.ErrCodeInvalidCredential {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredential)
	}
}

func TestAuthHandler_Login_MalformedBody_Returns400(t *testing.T) {
	called := false
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, rawIDToken string) (*auth.Result, error) {
			called = true
			return testAuthResult(), nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google/login", bytes.NewBufferString(`{not json`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("service must not be called for a malformed body")
	}
}

func TestAuthHandler_Logout_ReturnsMessage(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body messageResponse
	decodeBody(t, w, &body)
	if body.Message != "Logged out successfully" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, userID string) (*model.User, error) {
			if userID != "user-1" {
				return nil, model.NewUserNotFoundError()
			}
			return testAuthResult().User, nil
		},
	}
	h := NewAuthHandler(svc)

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
		w := httptest.NewRecorder()

		h.Me(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body userResponse
		decodeBody(t, w, &body)
		if body.Name != "Alice" {
			t.Errorf("name = %q, want Alice", body.Name)
		}
	})

	t.Run("deleted user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), "ghost"))
		w := httptest.NewRecorder()

		h.Me(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("no user in context", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewInvalidCredentialError("x"), http.StatusBadRequest},
		{model.NewUserAlreadyExistsError(), http.StatusBadRequest},
		{model.NewValidationFailedError(nil), http.StatusBadRequest},
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{&model.APIError{Code: model.ErrCodeStorageFailure}, http.StatusInternalServerError},
		{&model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
