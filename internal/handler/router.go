package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/healthtrack/internal/metrics"
	"github.com/hitoshi/healthtrack/internal/middleware"
	"github.com/hitoshi/healthtrack/internal/realtime"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger                 *slog.Logger
	Metrics                metrics.MetricsCollector
	CORSAllowedOrigin      string
	TokenValidator         middleware.TokenValidator
	RateLimiter            *middleware.RateLimiter
	AuthRateLimitPerMinute int

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface

	// 計測値
	ReadingService ReadingServiceInterface

	// リアルタイム配信
	Hub *realtime.Hub
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit(General) → RateLimit(Write, POSTのみ)
//
// 認証ルート（/api/auth/google/*）はIP単位のレート制限のみを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	var publisher realtime.Publisher
	if deps.Hub != nil {
		publisher = deps.Hub
	}
	readingHandler := NewReadingHandler(deps.ReadingService, publisher)

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Route("/api/auth/google", func(r chi.Router) {
		if deps.AuthRateLimitPerMinute > 0 {
			r.Use(middleware.NewAuthRateLimitMiddleware(deps.AuthRateLimitPerMinute))
		}
		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)

		write := deps.RateLimiter.WriteMiddleware()

		r.Route("/api/bloodpressure", func(r chi.Router) {
			r.Get("/", readingHandler.ListBloodPressure)
			r.With(write).Post("/", readingHandler.CreateBloodPressure)
		})
		r.Route("/api/spo2", func(r chi.Router) {
			r.Get("/", readingHandler.ListSpO2)
			r.With(write).Post("/", readingHandler.CreateSpO2)
		})
		r.Route("/api/weight", func(r chi.Router) {
			r.Get("/", readingHandler.ListWeight)
			r.With(write).Post("/", readingHandler.CreateWeight)
		})
	})

	// --- リアルタイム配信 ---
	// ブラウザはWebSocketのヘッダーを設定できないため、クエリのtokenも受け付ける
	if deps.Hub != nil {
		realtimeHandler := NewRealtimeHandler(deps.Hub, deps.CORSAllowedOrigin)
		r.With(middleware.NewRealtimeAuthMiddleware(deps.TokenValidator, deps.Metrics)).
			Get("/api/realtime", realtimeHandler.Serve)
	}

	return r
}
