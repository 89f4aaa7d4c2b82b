package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/middleware"
)

// StoreInterface はルーターが必要とするストアの統合インターフェース。
// *store.Storeが実装する。
type StoreInterface interface {
	StoreReader
	OccupancyReader
	StatusReader
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	Lifecycle     LifecycleServiceInterface
	PatronFinder  PatronFinder
	PatronService PatronServiceInterface
	SettingsStore SettingsStoreInterface
	Store         StoreInterface
	Clock         clock.Clock

	// メトリクス公開用ハンドラー。nilの場合は/metricsを公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	sessionHandler := NewSessionHandler(deps.Lifecycle, deps.PatronFinder, deps.Store)
	patronHandler := NewPatronHandler(deps.PatronService, deps.Store)
	occupancyHandler := NewOccupancyHandler(deps.Store)
	settingsHandler := NewSettingsHandler(deps.SettingsStore, deps.Store, deps.Clock)
	statusHandler := NewStatusHandler(deps.Store)

	// --- 運用エンドポイント（レート制限の外） ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIエンドポイント ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 入退館
		r.Route("/api/sessions", func(r chi.Router) {
			// 入退館操作にはスキャナー暴発対策の専用レート制限を追加
			r.With(deps.RateLimiter.CheckinMiddleware()).Post("/checkin", sessionHandler.CheckIn)
			r.With(deps.RateLimiter.CheckinMiddleware()).Post("/{id}/checkout", sessionHandler.CheckOut)

			r.Get("/active", sessionHandler.ListActive)
			r.Get("/recent", sessionHandler.ListRecent)
			r.Get("/today", sessionHandler.ListToday)
		})

		// 在館状況
		r.Get("/api/occupancy", occupancyHandler.Get)

		// 利用者台帳
		r.Route("/api/patrons", func(r chi.Router) {
			r.Get("/", patronHandler.List)
			r.Post("/", patronHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", patronHandler.Get)
				r.Put("/", patronHandler.Update)
				r.Delete("/", patronHandler.Delete)
			})
		})

		// 運用ポリシー設定
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
		})

		// 接続状態と再同期
		r.Get("/api/status", statusHandler.Get)
		r.Post("/api/resync", statusHandler.Resync)
	})

	return r
}
