package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zefirkoooo/food-calendar/backend/config"
	"github.com/zefirkoooo/food-calendar/backend/internal/api/handler"
	"github.com/zefirkoooo/food-calendar/backend/internal/api/middleware"
	"github.com/zefirkoooo/food-calendar/backend/internal/model"
	"github.com/zefirkoooo/food-calendar/backend/pkg/jwt"
	"github.com/zefirkoooo/food-calendar/backend/pkg/redis"
)

const (
	// defaultBodyLimit 普通 JSON 请求体上限
	defaultBodyLimit = 1 << 20

	uploadPath = "/api/v1/menus/upload"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单与限流降级为放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		blacklist middleware.TokenChecker
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(defaultBodyLimit, map[string]int64{
		uploadPath: cfg.Server.MaxUploadMB << 20,
	}))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				status["status"], status["database"] = "degraded", "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				status["redis"] = "unavailable"
			}
		}
		c.JSON(code, status)
	})

	admin := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(limiter, 10, time.Minute), h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户管理
			users := authorized.Group("/users", admin)
			{
				users.GET("", h.User.ListUsers)
				users.POST("", h.User.CreateUser)
				users.PUT("/:id/role", h.User.SetRole)
				users.PUT("/:id/password", h.User.ResetPassword)
				users.DELETE("/:id", h.User.DeleteUser)
			}

			// 菜单与日历
			menus := authorized.Group("/menus")
			{
				menus.GET("/calendar", h.Menu.Calendar)
				menus.GET("/days/:id", h.Menu.Day)
				menus.GET("/days/:id/dishes", h.Menu.Dishes)
				menus.POST("/upload", admin, h.Menu.Upload)
				menus.POST("/rollover", admin, h.Menu.Rollover)
				menus.DELETE("", admin, h.Menu.ClearCalendar)
			}

			// 菜品管理
			dishes := authorized.Group("/dishes", admin)
			{
				dishes.GET("/main", h.Dish.ListMain)
				dishes.PUT("/:id/complete", h.Dish.SetComplete)
				dishes.DELETE("", h.Dish.ClearAll)
			}

			// 选餐
			selections := authorized.Group("/selections")
			{
				selections.GET("/days/:id", h.Selection.Get)
				selections.PUT("/days/:id", h.Selection.Save)
				selections.DELETE("", admin, h.Selection.Clear)
			}

			// 导出
			export := authorized.Group("/export", admin)
			{
				export.GET("/selection-counts", h.Export.SelectionCounts)
				export.GET("/selections", h.Export.Selections)
				export.GET("/summary", h.Export.Summary)
			}
		}
	}

	return r
}
