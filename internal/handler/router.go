package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kuresearch/internal/metrics"
	"github.com/hitoshi/kuresearch/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はルーター構築に必要な依存一式。
type RouterDeps struct {
	AuthHandler     *AuthHandler
	PaperHandler    *PaperHandler
	FavoriteHandler *FavoriteHandler
	UploadHandler   *UploadHandler
	PageHandler     *PageHandler
	SessionFinder   middleware.SessionFinder
	RateLimiter     *middleware.RateLimiter
	CSRFConfig      middleware.CSRFConfig
	AllowedOrigin   string
	Logger          *slog.Logger
	Gatherer        prometheus.Gatherer
}

// NewRouter はアプリケーション全体のルーティングを構築する。
//
// ミドルウェアの適用順序（外側から）:
//
//	CORS -> セキュリティヘッダー -> パニック回復 -> リクエストログ
//
// ゲート対象のAPIグループには追加でセッション検証・CSRF・レート制限が掛かる。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	// 運用エンドポイント（認証不要）
	r.Get("/health", healthHandler)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// 認証フロー（セッション取得前のためゲート外）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", deps.AuthHandler.Login)
		r.Get("/google/callback", deps.AuthHandler.Callback)
		r.Post("/logout", deps.AuthHandler.Logout)
		r.Get("/me", deps.AuthHandler.Me)
	})

	// ページ
	r.Get("/", deps.PageHandler.Root)
	r.Get("/sign", deps.PageHandler.Sign)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageGateMiddleware(deps.SessionFinder, "/sign"))
		r.Get("/home", deps.PageHandler.Home)
		r.Get("/home/add-research", deps.PageHandler.AddPaper)
	})

	// API（セッション必須）
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Get("/papers", deps.PaperHandler.List)
		r.Get("/papers/facets", deps.PaperHandler.Facets)
		// 論文登録のみ追加の厳しいレート制限を掛ける
		r.With(deps.RateLimiter.SubmitMiddleware()).Post("/papers", deps.PaperHandler.Create)

		r.Put("/papers/{id}/favorite", deps.FavoriteHandler.Toggle)
		r.Get("/favorites", deps.FavoriteHandler.List)

		r.Post("/uploads", deps.UploadHandler.Upload)
		r.Post("/uploads/detect", deps.UploadHandler.Detect)
	})

	return r
}

// healthHandler はヘルスチェック用エンドポイント。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
