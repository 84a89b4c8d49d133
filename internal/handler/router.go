package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inkpost/internal/metrics"
	"github.com/hitoshi/inkpost/internal/middleware"
	"github.com/hitoshi/inkpost/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	MaxBodyBytes      int64
	EnableHSTS        bool
	Logger            *slog.Logger

	// 監視
	HealthChecker repository.Pinger
	Metrics       metrics.MetricsCollector
	MetricsPage   http.Handler

	// サービス
	AuthService        AuthServiceInterface
	PostService        PostServiceInterface
	UserService        UserServiceInterface
	SyndicationBuilder FeedBuilder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → BodyLimit
//
// 認証が必要なルートのみAuthMiddlewareのグループに置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.EnableHSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodyBytes))

	authHandler := NewAuthHandler(deps.AuthService)
	postHandler := NewPostHandler(deps.PostService)
	userHandler := NewUserHandler(deps.UserService)
	syndicationHandler := NewSyndicationHandler(deps.SyndicationBuilder)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserFinder)

	// --- 認証不要のルート ---

	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsPage != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsPage)
	}
	r.Get("/sitemap.xml", syndicationHandler.Sitemap)
	r.Get("/feed.xml", syndicationHandler.Feed)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/federated", authHandler.Federated)
		r.Post("/google", authHandler.Federated)
	})

	r.Route("/content", func(r chi.Router) {
		r.Get("/", postHandler.List)
		r.Get("/{id}", postHandler.Get)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", postHandler.Create)
			r.Put("/{id}", postHandler.Update)
			r.Delete("/{id}", postHandler.Delete)
			r.Post("/{id}/like", postHandler.ToggleLike)
			r.Post("/{id}/comments", postHandler.AddComment)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/profile", userHandler.GetProfile)
		r.Put("/profile", userHandler.UpdateProfile)

		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", userHandler.ListBookmarks)
			r.Post("/{postID}", userHandler.AddBookmark)
			r.Delete("/{postID}", userHandler.RemoveBookmark)
		})
	})

	return r
}
