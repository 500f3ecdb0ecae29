package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/runherald/internal/metrics"
	"github.com/hitoshi/runherald/internal/middleware"
)

// HealthChecker はヘルスチェックでの死活確認に使用するインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger

	// 購読管理
	SubscriptionService SubscriptionServiceInterface

	// 運用エンドポイント
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter は管理APIの全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → RateLimit
//
// 運用エンドポイント（/health, /metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	subHandler := NewSubscriptionHandler(deps.SubscriptionService)

	// --- 運用エンドポイント ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- 管理API ---
	// レート制限はクライアントIP単位で適用する
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", subHandler.ListSubscriptions)
			r.Post("/", subHandler.CreateSubscription)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", subHandler.GetSubscription)
				r.Patch("/", subHandler.UpdateSubscription)
				r.Delete("/", subHandler.DeleteSubscription)

				// GET /api/subscriptions/{id}/messages - 配信台帳の参照
				r.Get("/messages", subHandler.ListMessages)
			})
		})
	})

	return r
}

// newHealthHandler はDBへの疎通確認を行うヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
