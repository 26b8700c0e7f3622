// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/healthtrack/internal/auth"
	"github.com/hitoshi/healthtrack/internal/metrics"
	"github.com/hitoshi/healthtrack/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// TokenValidator はアクセストークンの検証インターフェース。
type TokenValidator interface {
	Validate(tokenString string) (*auth.AccessClaims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// ヘッダーが無い場合は401、形式不正・署名不正・期限切れの場合は403を返し、後続のハンドラーは実行しない。
// 検証に成功した場合はユーザーIDをリクエストコンテキストに注入する。
func NewAuthMiddleware(validator TokenValidator, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return newAuthMiddleware(validator, mc, false)
}

// NewRealtimeAuthMiddleware はWebSocket用の認証ミドルウェアを返す。
// ブラウザはアップグレード時にヘッダーを設定できないため、?token= も受け付ける。
func NewRealtimeAuthMiddleware(validator TokenValidator, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return newAuthMiddleware(validator, mc, true)
}

func newAuthMiddleware(validator TokenValidator, mc metrics.MetricsCollector, allowQuery bool) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Noop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" && allowQuery {
				if q := r.URL.Query().Get("token"); q != "" {
					header = "Bearer " + q
				}
			}

			// 1. トークン未指定は401
			if header == "" {
				mc.RecordAuthRejection("missing")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. Bearer形式でない、または検証失敗は403
			token, ok := bearerToken(header)
			if !ok {
				mc.RecordAuthRejection("malformed")
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				mc.RecordAuthRejection("invalid")
				slog.Debug("access token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			// 3. 認証済みユーザーIDをコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), claims.UserID)))
		})
	}
}

// bearerToken は "Bearer <token>" からトークンを取り出す。スキーム名は大文字小文字を区別しない。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの配下であれば、アクセスログにもユーザーIDを記録させる。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}
