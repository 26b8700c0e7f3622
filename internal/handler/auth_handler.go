// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/healthtrack/internal/auth"
	"github.com/hitoshi/healthtrack/internal/middleware"
	"github.com/hitoshi/healthtrack/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, rawIDToken string) (*auth.Result, error)
	Login(ctx context.Context, rawIDToken string) (*auth.Result, error)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler はGoogle IDトークンによる認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// googleTokenRequest はサインアップ・ログインのリクエストボディ。
// クライアントによって id_token と idToken の両方の綴りが使われる。
type googleTokenRequest struct {
	IDToken      string `json:"idToken"`
	IDTokenSnake string `json:"id_token"`
}

func (r googleTokenRequest) token() string {
	if t := strings.TrimSpace(r.IDToken); t != "" {
		return t
	}
	return strings.TrimSpace(r.IDTokenSnake)
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// authResponse はサインアップ・ログイン成功時のレスポンス。
type authResponse struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        userResponse `json:"user"`
}

// SignUp はGoogleのIDトークンで新規ユーザーを登録する。
// POST /api/auth/google/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req googleTokenRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.SignUp(r.Context(), req.token())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse("Signed up successfully", result))
}

// Login はGoogleのIDトークンでログインする。初回の場合はユーザーを作成する。
// POST /api/auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req googleTokenRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.Login(r.Context(), req.token())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse("Logged in successfully", result))
}

// Logout はログアウトする。トークンはステートレスなので、クライアント側で破棄する。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func toAuthResponse(message string, result *auth.Result) authResponse {
	return authResponse{
		Message:     message,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
		User:        toUserResponse(result.User),
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
