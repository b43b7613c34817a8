package handler

import (
	"fmt"
	"net/http"
	"time"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
	"studyhabit-backend/pkg/handlers"
	"studyhabit-backend/pkg/logs"
	"studyhabit-backend/pkg/mailer"
	customMiddleware "studyhabit-backend/pkg/middleware"
	"studyhabit-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// 获取缓存的持久层客户端（冷启动时初始化，热调用间复用）
	client, err := database.GetCachedClient(database.StorageConfig{
		Driver:      cfg.StorageDriver,
		DataDir:     cfg.DataDir,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		logs.Logger.WithError(err).Error("storage initialization failed")
		utils.WriteInternalServerErrorResponse(w, "Storage error: "+err.Error())
		return
	}

	// 创建Chi路由器
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, cfg)

	// 设置路由
	setupRoutes(router, cfg, client)

	// 将请求传递给Chi路由器处理
	router.ServeHTTP(w, r)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 请求体限制与Content-Type校验
	router.Use(customMiddleware.MaxBodySize(1 << 20)) // 1MB
	router.Use(customMiddleware.ContentTypeJSON)

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, client *database.Client) {
	// 创建处理器
	mail := mailer.New(cfg)
	authHandler := handlers.NewAuthHandler(cfg, client, mail)
	sessionsHandler := handlers.NewSessionsHandler(cfg, client)
	invitationsHandler := handlers.NewInvitationsHandler(cfg, client, mail)
	leaderboardHandler := handlers.NewLeaderboardHandler(cfg, client)
	orgsHandler := handlers.NewOrgsHandler(cfg, client)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)

	// API路由组
	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// 邀请码校验（注册页用，公开）
		r.Get("/invitations/validate", invitationsHandler.ValidateInvitation)

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			// 应用认证中间件
			r.Use(customMiddleware.AuthMiddleware(cfg))

			// 用户相关路由
			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", authHandler.Me)
				r.Put("/password", authHandler.UpdatePassword)
			})

			// 学习记录路由
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionsHandler.ListSessions)
				r.Post("/", sessionsHandler.CreateSession)
				r.Put("/{id}", sessionsHandler.UpdateSession)
				r.Delete("/{id}", sessionsHandler.DeleteSession)
			})

			// 邀请管理路由（管理员）
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", invitationsHandler.ListInvitations)
				r.Post("/", invitationsHandler.CreateInvitation)
				r.Post("/resend", invitationsHandler.ResendInvitation)
				r.Delete("/{id}", invitationsHandler.RevokeInvitation)
			})

			// 组织信息
			r.Route("/orgs", func(r chi.Router) {
				r.Get("/my", orgsHandler.GetMyOrganization)
				r.Get("/members", orgsHandler.ListMembers)
			})

			// 统计与排行榜
			r.Get("/leaderboard", leaderboardHandler.GetLeaderboard)
			r.Get("/stats", leaderboardHandler.GetStats)
			r.Get("/achievements", leaderboardHandler.ListAchievements)
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
